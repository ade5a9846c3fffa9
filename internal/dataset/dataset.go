// Package dataset reads posterior draws and the design matrix from a YAML or
// JSON file.
//
// A file looks like:
//
//	x: [[0.1, 1.0], [0.4, 0.0]]
//	tiv: [0, 0.5, 1]
//	draws:
//	  - beta: [[0.2, 1.0, -0.5], [0.0, 0.0, 0.0]]
//	    zeta: {nrow: 2, ncol: 2, data: [0.1, 0.3, 0, 0]}
//
// A matrix is either a list of rows or a column-major {nrow, ncol, data}
// mapping. tiv is optional.
package dataset

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/fchmm/internal/dense"
)

// ErrMissing indicates a required field absent from the file.
var ErrMissing = errors.New("dataset: missing field")

// Matrix decodes either matrix encoding into a dense matrix.
type Matrix struct {
	*mat.Dense
}

type colMajor struct {
	NRow int       `yaml:"nrow"`
	NCol int       `yaml:"ncol"`
	Data []float64 `yaml:"data"`
}

// UnmarshalYAML decodes a list of rows or a column-major {nrow, ncol, data} mapping.
func (m *Matrix) UnmarshalYAML(node *yaml.Node) error {
	var (
		d   *mat.Dense
		err error
	)

	switch node.Kind {
	case yaml.SequenceNode:
		var rows [][]float64
		if err := node.Decode(&rows); err != nil {
			return err
		}
		d, err = dense.FromRows(rows)
	case yaml.MappingNode:
		var cm colMajor
		if err := node.Decode(&cm); err != nil {
			return err
		}
		d, err = dense.FromColMajor(cm.NRow, cm.NCol, cm.Data)
	default:
		return fmt.Errorf("line %d: matrix must be a list of rows or a {nrow, ncol, data} mapping", node.Line)
	}
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	m.Dense = d
	return nil
}

// Draw is one posterior sample.
type Draw struct {
	Beta Matrix `yaml:"beta"`
	Zeta Matrix `yaml:"zeta"`
}

// Posterior is the decoded content of a dataset file.
type Posterior struct {
	X     Matrix    `yaml:"x"`
	Tiv   []float64 `yaml:"tiv"`
	Draws []Draw    `yaml:"draws"`
}

// Load reads and decodes the file at path.
func Load(path string) (*Posterior, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Decode reads a posterior from r.
func Decode(r io.Reader) (*Posterior, error) {
	var p Posterior
	if err := yaml.NewDecoder(r).Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrMissing)
		}
		return nil, err
	}

	if p.X.Dense == nil {
		return nil, fmt.Errorf("%w: x", ErrMissing)
	}
	for i, d := range p.Draws {
		if d.Beta.Dense == nil {
			return nil, fmt.Errorf("%w: draws[%d].beta", ErrMissing, i)
		}
		if d.Zeta.Dense == nil {
			return nil, fmt.Errorf("%w: draws[%d].zeta", ErrMissing, i)
		}
	}
	return &p, nil
}

// Betas returns the beta matrix of every draw in file order.
func (p *Posterior) Betas() []*mat.Dense {
	out := make([]*mat.Dense, len(p.Draws))
	for i, d := range p.Draws {
		out[i] = d.Beta.Dense
	}
	return out
}

// Zetas returns the zeta matrix of every draw in file order.
func (p *Posterior) Zetas() []*mat.Dense {
	out := make([]*mat.Dense, len(p.Draws))
	for i, d := range p.Draws {
		out[i] = d.Zeta.Dense
	}
	return out
}
