package effects_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/fchmm/internal/effects"
)

func randomDense(rng *rand.Rand, r, c int) *mat.Dense {
	data := make([]float64, r*c)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return mat.NewDense(r, c, data)
}

// posterior builds `draws` random draws with K classes over an N×D design.
func posterior(seed int64, draws, k, n, d int) ([]*mat.Dense, []*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	x := randomDense(rng, n, d)
	beta := make([]*mat.Dense, draws)
	zeta := make([]*mat.Dense, draws)
	for i := range beta {
		beta[i] = randomDense(rng, k, d+1)
		zeta[i] = randomDense(rng, n, k)
	}
	return beta, zeta, x
}

type countingObserver struct {
	mu      sync.Mutex
	indices []int
	runs    int
	runErr  error
}

func (o *countingObserver) ObserveDraw(index int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.indices = append(o.indices, index)
}

func (o *countingObserver) ObserveRun(_ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.runs++
	o.runErr = err
}

var _ = Describe("Ensemble", func() {
	var v []float64

	BeforeEach(func() {
		v = []float64{-1, 0, 0.5, 2}
	})

	Describe("output shape and probabilities", func() {
		It("returns one K x len(v) matrix per draw with columns summing to one", func() {
			beta, zeta, x := posterior(1, 6, 3, 20, 4)

			out, err := effects.PosteriorPredict(beta, zeta, x, v, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(HaveLen(6))

			for _, m := range out {
				r, c := m.Dims()
				Expect(r).To(Equal(3))
				Expect(c).To(Equal(len(v)))
				for j := 0; j < c; j++ {
					col := mat.Col(nil, j, m)
					Expect(floats.Sum(col)).To(BeNumerically("~", 1, 1e-9))
					Expect(floats.Min(col)).To(BeNumerically(">=", 0))
				}
			}
		})

		It("gives a uniform distribution when every logit is zero", func() {
			beta := []*mat.Dense{mat.NewDense(2, 2, nil)}
			zeta := []*mat.Dense{mat.NewDense(3, 2, nil)}
			x := mat.NewDense(3, 1, []float64{0.3, -1, 2})

			out, err := effects.PosteriorPredict(beta, zeta, x, []float64{0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Col(nil, 0, out[0])).To(Equal([]float64{0.5, 0.5}))
		})
	})

	Describe("determinism and ordering", func() {
		It("produces identical results for every concurrency", func() {
			beta, zeta, x := posterior(7, 12, 4, 15, 3)

			ref, err := effects.PosteriorPredict(beta, zeta, x, v, 1)
			Expect(err).NotTo(HaveOccurred())

			for _, workers := range []int{2, 5, 16, 0} {
				out, err := effects.PosteriorPredict(beta, zeta, x, v, workers)
				Expect(err).NotTo(HaveOccurred())
				for i := range ref {
					Expect(mat.Equal(ref[i], out[i])).To(BeTrue(), "draw %d at concurrency %d", i, workers)
				}
			}
		})

		It("keeps results aligned with input draw order", func() {
			beta, zeta, x := posterior(11, 8, 3, 10, 2)

			out, err := effects.PosteriorPredict(beta, zeta, x, v, 4)
			Expect(err).NotTo(HaveOccurred())

			for i := range beta {
				single, err := effects.PosteriorPredict(beta[i:i+1], zeta[i:i+1], x, v, 1)
				Expect(err).NotTo(HaveOccurred())
				Expect(mat.Equal(single[0], out[i])).To(BeTrue(), "draw %d", i)
			}
		})

		It("does not modify its inputs", func() {
			beta, zeta, x := posterior(3, 2, 2, 5, 2)
			betaCopy := mat.DenseCopyOf(beta[0])
			zetaCopy := mat.DenseCopyOf(zeta[0])
			xCopy := mat.DenseCopyOf(x)

			_, err := effects.PosteriorPredict(beta, zeta, x, v, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(mat.Equal(beta[0], betaCopy)).To(BeTrue())
			Expect(mat.Equal(zeta[0], zetaCopy)).To(BeTrue())
			Expect(mat.Equal(x, xCopy)).To(BeTrue())
		})
	})

	Describe("validation", func() {
		It("rejects beta and zeta of different lengths", func() {
			beta, zeta, x := posterior(1, 3, 2, 4, 2)

			out, err := effects.PosteriorPredict(beta, zeta[:2], x, v, 2)
			Expect(out).To(BeNil())
			Expect(err).To(MatchError(effects.ErrInvalidArgument))
			Expect(err.Error()).To(Equal("beta and zeta must have the same length"))
		})

		It("rejects empty input", func() {
			x := mat.NewDense(2, 1, nil)

			out, err := effects.PosteriorPredict(nil, nil, x, v, 2)
			Expect(out).To(BeNil())
			Expect(err).To(MatchError(effects.ErrInvalidArgument))
			Expect(err.Error()).To(Equal("length of beta and zeta must be >0"))
		})

		It("rejects an empty tiv sweep", func() {
			beta, zeta, x := posterior(1, 1, 2, 4, 2)

			_, err := effects.PosteriorPredict(beta, zeta, x, nil, 1)
			Expect(err).To(MatchError(effects.ErrInvalidArgument))
		})

		DescribeTable("per-draw shape mismatches",
			func(mutate func(beta, zeta []*mat.Dense)) {
				beta, zeta, x := posterior(5, 3, 2, 4, 2)
				mutate(beta, zeta)

				out, err := effects.PosteriorPredict(beta, zeta, x, v, 2)
				Expect(out).To(BeNil())
				Expect(err).To(MatchError(effects.ErrDimensionMismatch))
				Expect(err).To(MatchError(effects.ErrInvalidArgument))

				var de *effects.DrawError
				Expect(errors.As(err, &de)).To(BeTrue())
				Expect(de.Index).To(Equal(1))
			},
			Entry("zeta rows differ from X rows", func(beta, zeta []*mat.Dense) {
				zeta[1] = mat.NewDense(5, 2, nil)
			}),
			Entry("beta columns differ from X columns + 1", func(beta, zeta []*mat.Dense) {
				beta[1] = mat.NewDense(2, 2, nil)
			}),
			Entry("beta rows differ from zeta columns", func(beta, zeta []*mat.Dense) {
				zeta[1] = mat.NewDense(4, 3, nil)
			}),
			Entry("class count differs from the first draw", func(beta, zeta []*mat.Dense) {
				beta[1] = mat.NewDense(3, 3, nil)
				zeta[1] = mat.NewDense(4, 3, nil)
			}),
		)
	})

	Describe("observer and context", func() {
		It("reports every draw and the run", func() {
			beta, zeta, x := posterior(2, 5, 2, 6, 2)
			obs := &countingObserver{}

			ens := effects.NewEnsemble(2, effects.WithObserver(obs))
			_, err := ens.Run(context.Background(), beta, zeta, x, v)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.indices).To(ConsistOf(0, 1, 2, 3, 4))
			Expect(obs.runs).To(Equal(1))
			Expect(obs.runErr).NotTo(HaveOccurred())
		})

		It("reports validation failures to the observer", func() {
			obs := &countingObserver{}

			ens := effects.NewEnsemble(1, effects.WithObserver(obs))
			_, err := ens.Run(context.Background(), nil, nil, mat.NewDense(1, 1, nil), v)
			Expect(err).To(HaveOccurred())
			Expect(obs.runs).To(Equal(1))
			Expect(obs.runErr).To(MatchError(effects.ErrInvalidArgument))
			Expect(obs.indices).To(BeEmpty())
		})

		It("returns the context error when cancelled", func() {
			beta, zeta, x := posterior(2, 4, 2, 6, 2)
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			out, err := effects.NewEnsemble(2).Run(ctx, beta, zeta, x, v)
			Expect(out).To(BeNil())
			Expect(err).To(MatchError(context.Canceled))
		})

		It("defaults concurrency to GOMAXPROCS", func() {
			Expect(effects.NewEnsemble(0).Concurrency()).To(BeNumerically(">=", 1))
			Expect(effects.NewEnsemble(3).Concurrency()).To(Equal(3))
		})
	})
})
