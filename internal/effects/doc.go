// Package effects computes posterior predictive class-probability effects
// for a multinomial regression model.
//
// Each posterior draw is a pair of matrices:
//
//   - beta: K × (D+1) coefficients; column 0 multiplies the swept covariate
//     (tiv), columns 1..D multiply the columns of the design matrix X
//   - zeta: N × K per-observation offsets
//
// For every candidate covariate value v[j] the package averages the
// row-wise softmax of zeta + X·beta[:,1:]ᵀ + beta[:,0]·v[j] over the N
// observations, giving one K × len(v) effects matrix per draw.
//
// # Layers
//
//   - [SoftmaxMean]: row-wise max-subtracted softmax reduced to a mean row
//   - [Predict]: fills one draw's effects matrix
//   - [Ensemble]: validates inputs and runs draws on a bounded worker pool
//   - [Summarize]: pointwise mean and credible bounds across draws
//
// # Example
//
//	ens := effects.NewEnsemble(4, effects.WithLogger(logger))
//	out, err := ens.Run(ctx, betas, zetas, x, []float64{0, 0.5, 1})
//
// # Thread Safety
//
// [Predict] and [SoftmaxMean] are pure apart from the destination they are
// given. An [Ensemble] holds no per-run state and may be shared.
package effects
