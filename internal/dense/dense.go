// Package dense converts between host matrix buffers and gonum dense
// matrices.
//
// Statistical environments such as R store matrices column-major; gonum
// stores them row-major. Every function here copies, so the returned value
// never aliases the argument.
package dense

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// ErrShape indicates a buffer that does not describe a non-empty rectangular
// matrix.
var ErrShape = errors.New("dense: invalid matrix shape")

// FromColMajor copies a column-major buffer of rows×cols values into a new
// matrix.
func FromColMajor(rows, cols int, data []float64) (*mat.Dense, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrShape, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d matrix", ErrShape, len(data), rows, cols)
	}

	m := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			m.Set(i, j, data[j*rows+i])
		}
	}
	return m, nil
}

// ToColMajor copies m into a new column-major buffer.
func ToColMajor(m mat.Matrix) (rows, cols int, data []float64) {
	rows, cols = m.Dims()
	data = make([]float64, rows*cols)
	for j := 0; j < cols; j++ {
		col := data[j*rows : (j+1)*rows]
		mat.Col(col, j, m)
	}
	return rows, cols, data
}

// FromRows copies a slice of equal-length rows into a new matrix.
func FromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrShape)
	}

	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShape, i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// ToRows copies m into a slice of rows.
func ToRows(m mat.Matrix) [][]float64 {
	r, _ := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, m)
	}
	return out
}
