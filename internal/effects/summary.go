package effects

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Summary holds pointwise statistics of effects matrices across draws.
// Every matrix is K × len(v).
type Summary struct {
	Mean  *mat.Dense
	Lower *mat.Dense
	Upper *mat.Dense
	// Probs are the quantile levels of Lower and Upper.
	Probs [2]float64
}

// Summarize reduces per-draw effects to their posterior mean and the
// empirical lower and upper quantiles at each (class, value) cell.
func Summarize(draws []*mat.Dense, lower, upper float64) (*Summary, error) {
	if len(draws) == 0 {
		return nil, invalidArgument("no draws to summarize")
	}
	if lower < 0 || upper > 1 || lower >= upper {
		return nil, invalidArgument("quantiles must satisfy 0 <= lower < upper <= 1, got %g and %g", lower, upper)
	}

	k, m := draws[0].Dims()
	for i, d := range draws {
		r, c := d.Dims()
		if r != k || c != m {
			return nil, &DrawError{Index: i, Wrapped: fmt.Errorf("%w: effects are %dx%d, want %dx%d", ErrDimensionMismatch, r, c, k, m)}
		}
	}

	s := &Summary{
		Mean:  mat.NewDense(k, m, nil),
		Lower: mat.NewDense(k, m, nil),
		Upper: mat.NewDense(k, m, nil),
		Probs: [2]float64{lower, upper},
	}

	cell := make([]float64, len(draws))
	for i := 0; i < k; i++ {
		for j := 0; j < m; j++ {
			for d, draw := range draws {
				cell[d] = draw.At(i, j)
			}
			sort.Float64s(cell)
			s.Mean.Set(i, j, stat.Mean(cell, nil))
			s.Lower.Set(i, j, stat.Quantile(lower, stat.Empirical, cell, nil))
			s.Upper.Set(i, j, stat.Quantile(upper, stat.Empirical, cell, nil))
		}
	}
	return s, nil
}
