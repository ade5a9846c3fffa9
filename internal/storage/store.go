package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/fchmm/internal/effects"
)

const (
	metadataFile = "metadata.json"
	effectsFile  = "effects.csv"
	summaryFile  = "summary.csv"
)

// createFile opens run files for writing.
var createFile = os.Create

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID           string     `json:"id"`
	Input        string     `json:"input"`
	Timestamp    time.Time  `json:"timestamp"`
	Draws        int        `json:"draws"`
	Classes      int        `json:"classes"`
	Observations int        `json:"observations"`
	Features     int        `json:"features"`
	Tiv          []float64  `json:"tiv"`
	Concurrency  int        `json:"concurrency"`
	Elapsed      float64    `json:"elapsed_seconds"`
	Interval     [2]float64 `json:"interval"`
}

// Save writes a run and returns its generated ID. meta.ID and meta.Timestamp
// are filled in. summary may be nil.
func (s *Store) Save(meta RunMetadata, draws []*mat.Dense, summary *effects.Summary) (string, error) {
	meta.ID = uuid.NewString()
	meta.Timestamp = time.Now()
	meta.Draws = len(draws)
	if len(draws) > 0 {
		meta.Classes, _ = draws[0].Dims()
	}
	if summary != nil {
		meta.Interval = summary.Probs
	}

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeRun(runDir, meta, draws, summary); err != nil {
		os.RemoveAll(runDir)
		return "", err
	}
	return meta.ID, nil
}

func writeRun(runDir string, meta RunMetadata, draws []*mat.Dense, summary *effects.Summary) error {
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return err
	}
	if err := writeEffects(filepath.Join(runDir, effectsFile), draws, meta.Tiv); err != nil {
		return err
	}
	if summary != nil {
		return writeSummary(filepath.Join(runDir, summaryFile), summary, meta.Tiv)
	}
	return nil
}

func writeJSON(path string, meta RunMetadata) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeEffects(path string, draws []*mat.Dense, tiv []float64) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"draw", "class", "tiv_index", "tiv", "probability"}); err != nil {
		return err
	}

	for d, m := range draws {
		k, n := m.Dims()
		for i := 0; i < k; i++ {
			for j := 0; j < n; j++ {
				row := []string{
					strconv.Itoa(d),
					strconv.Itoa(i),
					strconv.Itoa(j),
					formatFloat(tivAt(tiv, j)),
					formatFloat(m.At(i, j)),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}

	w.Flush()
	return w.Error()
}

func writeSummary(path string, s *effects.Summary, tiv []float64) error {
	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"class", "tiv_index", "tiv", "mean", "lower", "upper"}); err != nil {
		return err
	}

	k, n := s.Mean.Dims()
	for i := 0; i < k; i++ {
		for j := 0; j < n; j++ {
			row := []string{
				strconv.Itoa(i),
				strconv.Itoa(j),
				formatFloat(tivAt(tiv, j)),
				formatFloat(s.Mean.At(i, j)),
				formatFloat(s.Lower.At(i, j)),
				formatFloat(s.Upper.At(i, j)),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func tivAt(tiv []float64, j int) float64 {
	if j < len(tiv) {
		return tiv[j]
	}
	return float64(j)
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadEffects rebuilds the per-draw effects matrices of a run.
func (s *Store) LoadEffects(runID string) ([]*mat.Dense, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Draws == 0 || meta.Classes == 0 || len(meta.Tiv) == 0 {
		return []*mat.Dense{}, nil
	}

	records, err := readCSV(filepath.Join(s.baseDir, runID, effectsFile))
	if err != nil {
		return nil, err
	}

	draws := make([]*mat.Dense, meta.Draws)
	for i := range draws {
		draws[i] = mat.NewDense(meta.Classes, len(meta.Tiv), nil)
	}

	for n, rec := range records {
		if len(rec) != 5 {
			return nil, fmt.Errorf("%s line %d: expected 5 fields, got %d", effectsFile, n+2, len(rec))
		}
		idx, err := parseInts(rec[0], rec[1], rec[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", effectsFile, n+2, err)
		}
		d, i, j := idx[0], idx[1], idx[2]
		if d >= meta.Draws || i >= meta.Classes || j >= len(meta.Tiv) {
			return nil, fmt.Errorf("%s line %d: index out of range", effectsFile, n+2)
		}
		p, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", effectsFile, n+2, err)
		}
		draws[d].Set(i, j, p)
	}

	return draws, nil
}

// LoadSummary reads the stored summary of a run.
func (s *Store) LoadSummary(runID string) (*effects.Summary, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if meta.Classes == 0 || len(meta.Tiv) == 0 {
		return nil, fmt.Errorf("run %s has no effects", runID)
	}

	records, err := readCSV(filepath.Join(s.baseDir, runID, summaryFile))
	if err != nil {
		return nil, err
	}

	k, m := meta.Classes, len(meta.Tiv)
	sum := &effects.Summary{
		Mean:  mat.NewDense(k, m, nil),
		Lower: mat.NewDense(k, m, nil),
		Upper: mat.NewDense(k, m, nil),
		Probs: meta.Interval,
	}

	for n, rec := range records {
		if len(rec) != 6 {
			return nil, fmt.Errorf("%s line %d: expected 6 fields, got %d", summaryFile, n+2, len(rec))
		}
		idx, err := parseInts(rec[0], rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", summaryFile, n+2, err)
		}
		i, j := idx[0], idx[1]
		if i >= k || j >= m {
			return nil, fmt.Errorf("%s line %d: index out of range", summaryFile, n+2)
		}

		var vals [3]float64
		for c := range vals {
			if vals[c], err = strconv.ParseFloat(rec[3+c], 64); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", summaryFile, n+2, err)
			}
		}
		sum.Mean.Set(i, j, vals[0])
		sum.Lower.Set(i, j, vals[1])
		sum.Upper.Set(i, j, vals[2])
	}

	return sum, nil
}

// readCSV returns every record after the header.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 1 {
		return nil, nil
	}
	return records[1:], nil
}

func parseInts(fields ...string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		if v < 0 {
			return nil, fmt.Errorf("negative index %d", v)
		}
		out[i] = v
	}
	return out, nil
}
