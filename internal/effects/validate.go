package effects

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Validate checks the inputs of a posterior prediction.
//
// The list checks come first and return errors carrying fixed messages.
// Per-draw checks return a *DrawError:
//
//	zeta.rows == x.rows
//	beta.cols == x.cols + 1
//	beta.rows == zeta.cols == beta[0].rows
func Validate(beta, zeta []*mat.Dense, x *mat.Dense, v []float64) error {
	if len(beta) != len(zeta) {
		return invalidArgument("beta and zeta must have the same length")
	}
	if len(beta) == 0 {
		return invalidArgument("length of beta and zeta must be >0")
	}
	if x == nil {
		return invalidArgument("design matrix X must not be nil")
	}
	if len(v) == 0 {
		return invalidArgument("tiv must contain at least one value")
	}

	n, d := x.Dims()
	var k int
	for i := range beta {
		if beta[i] == nil || zeta[i] == nil {
			return &DrawError{Index: i, Wrapped: invalidArgument("beta and zeta must not be nil")}
		}
		br, bc := beta[i].Dims()
		zr, zc := zeta[i].Dims()
		if i == 0 {
			k = br
		}

		switch {
		case zr != n:
			return &DrawError{Index: i, Wrapped: fmt.Errorf("%w: zeta has %d rows, X has %d", ErrDimensionMismatch, zr, n)}
		case bc != d+1:
			return &DrawError{Index: i, Wrapped: fmt.Errorf("%w: beta has %d columns, want %d (X columns + 1)", ErrDimensionMismatch, bc, d+1)}
		case br != zc:
			return &DrawError{Index: i, Wrapped: fmt.Errorf("%w: beta has %d rows, zeta has %d columns", ErrDimensionMismatch, br, zc)}
		case br != k:
			return &DrawError{Index: i, Wrapped: fmt.Errorf("%w: beta has %d classes, draw 0 has %d", ErrDimensionMismatch, br, k)}
		}
	}
	return nil
}
