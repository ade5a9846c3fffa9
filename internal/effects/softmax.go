package effects

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Softmax writes softmax(row) into dst and returns it.
//
// softmax(x_i) = exp(x_i - max(x)) / sum(exp(x_j - max(x)))
//
// dst may alias row. It is allocated when its length differs from row.
func Softmax(row, dst []float64) []float64 {
	if len(dst) != len(row) {
		dst = make([]float64, len(row))
	}
	if len(row) == 0 {
		return dst
	}

	maxVal := floats.Max(row)
	for i, x := range row {
		dst[i] = math.Exp(x - maxVal)
	}
	floats.Scale(1/floats.Sum(dst), dst)
	return dst
}

// SoftmaxMean applies Softmax to every row of m and returns the column-wise
// mean of the results, a length-K probability vector for an N×K input.
//
// dst is reused when it has length K. m is not modified. NaN and Inf in m
// propagate to the output.
func SoftmaxMean(m mat.Matrix, dst []float64) []float64 {
	r, c := m.Dims()
	dst = resetVec(dst, c)

	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, m)
		accumulateSoftmax(dst, row)
	}
	meanOf(dst, r)
	return dst
}

// accumulateSoftmax adds softmax(row) to sum, overwriting row.
func accumulateSoftmax(sum, row []float64) {
	Softmax(row, row)
	floats.Add(sum, row)
}

func meanOf(sum []float64, n int) {
	for i := range sum {
		sum[i] /= float64(n)
	}
}

func resetVec(v []float64, n int) []float64 {
	if len(v) != n {
		return make([]float64, n)
	}
	for i := range v {
		v[i] = 0
	}
	return v
}
