package effects

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Predict fills dst (K × len(v)) with the effects of one posterior draw.
//
// Column i of dst is the mean over the N observations of
// softmax(zeta + x·beta[:,1:]ᵀ + beta[:,0]·v[i]).
//
// Shapes are not checked here: beta is K×(D+1), zeta is N×K, x is N×D.
// Mismatches panic inside gonum. Use an Ensemble for validated input.
func Predict(dst *mat.Dense, beta *mat.Dense, zeta, x mat.Matrix, v []float64) {
	k, p := beta.Dims()
	n, _ := zeta.Dims()

	// N×D · D×K -> N×K
	var base mat.Dense
	base.Mul(x, beta.Slice(0, k, 1, p).T())
	base.Add(&base, zeta)

	slope := mat.Col(nil, 0, beta)
	shift := make([]float64, k)
	row := make([]float64, k)
	col := make([]float64, k)

	for i, vi := range v {
		floats.ScaleTo(shift, vi, slope)
		col = resetVec(col, k)
		for r := 0; r < n; r++ {
			floats.AddTo(row, base.RawRowView(r), shift)
			accumulateSoftmax(col, row)
		}
		meanOf(col, n)
		dst.SetCol(i, col)
	}
}
