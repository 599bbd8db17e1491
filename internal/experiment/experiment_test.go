package experiment

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/leadsim/internal/config"
	"github.com/san-kum/leadsim/internal/sim"
	"github.com/san-kum/leadsim/internal/tracefile"
)

type cancelAfter struct {
	n, after int
	cancel   context.CancelFunc
}

func (s *cancelAfter) Write(sim.Record) error {
	s.n++
	if s.n == s.after {
		s.cancel()
	}
	return nil
}

var errSinkFull = errors.New("sink full")

type failAfter struct {
	n, after int
}

func (s *failAfter) Write(sim.Record) error {
	s.n++
	if s.n > s.after {
		return errSinkFull
	}
	return nil
}

func referencePrefix(n int) string {
	data, err := os.ReadFile(filepath.Join("testdata", "reference_data.txt"))
	Expect(err).NotTo(HaveOccurred())
	lines := strings.SplitAfter(string(data), "\n")
	return strings.Join(lines[:n], "")
}

var _ = Describe("Experiment", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("the reference loop", func() {
		var (
			exp *Experiment
			rec *sim.Recorder
			res *sim.Result
		)

		BeforeEach(func() {
			var err error
			exp, err = New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			rec = sim.NewRecorder(config.DefaultSteps)
			res, err = exp.Run(ctx, rec)
			Expect(err).NotTo(HaveOccurred())
		})

		It("writes a trace identical to the reference output", func() {
			want, err := os.ReadFile(filepath.Join("testdata", "reference_data.txt"))
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			w := tracefile.NewWriter(&buf)
			for _, r := range rec.Records {
				Expect(w.Write(r)).To(Succeed())
			}
			Expect(w.Close()).To(Succeed())

			Expect(buf.String()).To(Equal(string(want)))
		})

		It("runs exactly the configured number of ticks", func() {
			Expect(res.Steps).To(Equal(config.DefaultSteps))
			Expect(rec.Records).To(HaveLen(config.DefaultSteps))
		})

		It("produces the reference first tick", func() {
			first := rec.Records[0]
			Expect(first.Time).To(BeZero())
			Expect(float64(first.Command)).To(BeNumerically("~", 6.581818, 1e-5))
			Expect(float64(first.Position)).To(BeNumerically("~", 0.0065818, 1e-6))
			Expect(first.Setpoint).To(BeEquivalentTo(1))
		})

		It("keeps every command within the output bounds", func() {
			var prev float32
			for _, r := range rec.Records {
				Expect(r.Command).To(BeNumerically("<=", 10))
				Expect(r.Command).To(BeNumerically(">=", -10))
				Expect(math.Abs(float64(r.Command - prev))).To(BeNumerically("<=", 10+1e-5))
				prev = r.Command
			}
		})

		It("converges toward the setpoint", func() {
			Expect(float64(res.Final.Position)).To(BeNumerically("~", 1, 0.1))
		})

		It("refuses to run a second time", func() {
			again := sim.NewRecorder(config.DefaultSteps)
			_, err := exp.Run(ctx, again)
			Expect(errors.Is(err, sim.ErrAlreadyRun)).To(BeTrue())
			Expect(again.Records).To(BeEmpty())
		})

		It("reports the default metrics", func() {
			Expect(res.Metrics).To(HaveKey("control_effort"))
			Expect(res.Metrics).To(HaveKey("iae"))
			Expect(res.Metrics).To(HaveKeyWithValue("stability", 1.0))
			Expect(res.Metrics).To(HaveKey("saturation"))
			Expect(res.Metrics["iae"]).To(BeNumerically(">", 0))
		})
	})

	Describe("RunFile", func() {
		It("writes the trace file and feeds extra sinks", func() {
			exp, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			path := filepath.Join(GinkgoT().TempDir(), "data.txt")
			rec := sim.NewRecorder(config.DefaultSteps)
			_, err = exp.RunFile(ctx, path, rec)
			Expect(err).NotTo(HaveOccurred())

			recs, err := tracefile.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(config.DefaultSteps))
			Expect(recs[len(recs)-1].Time).To(BeNumerically("~", rec.Records[len(rec.Records)-1].Time, 1e-6))
		})

		It("leaves the completed ticks in a closed file when cancelled", func() {
			exp, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			path := filepath.Join(GinkgoT().TempDir(), "data.txt")
			res, err := exp.RunFile(runCtx, path, &cancelAfter{after: 50, cancel: cancel})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())

			var simErr *sim.SimulationError
			Expect(errors.As(err, &simErr)).To(BeTrue())
			Expect(simErr.Step).To(Equal(50))
			Expect(res.Steps).To(Equal(50))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(referencePrefix(50)))
		})

		It("leaves the completed ticks in a closed file when a sink fails", func() {
			exp, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			path := filepath.Join(GinkgoT().TempDir(), "data.txt")
			res, err := exp.RunFile(ctx, path, &failAfter{after: 30})
			Expect(errors.Is(err, errSinkFull)).To(BeTrue())
			Expect(res.Steps).To(Equal(30))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(referencePrefix(30)))
		})

		It("does not truncate the trace of a finished experiment", func() {
			exp, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			path := filepath.Join(GinkgoT().TempDir(), "data.txt")
			_, err = exp.RunFile(ctx, path)
			Expect(err).NotTo(HaveOccurred())

			_, err = exp.RunFile(ctx, path)
			Expect(errors.Is(err, sim.ErrAlreadyRun)).To(BeTrue())

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(Equal(referencePrefix(config.DefaultSteps)))
		})

		It("fails when the output cannot be opened", func() {
			exp, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())

			_, err = exp.RunFile(ctx, filepath.Join(GinkgoT().TempDir(), "missing", "data.txt"))
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("configuration", func() {
		It("rejects an invalid configuration before building components", func() {
			cfg := config.DefaultConfig()
			cfg.Plant.Mass = 0
			_, err := New(cfg)
			Expect(errors.Is(err, config.ErrInvalid)).To(BeTrue())
		})

		It("is not affected by later edits to the caller's config", func() {
			cfg := config.DefaultConfig()
			exp, err := New(cfg)
			Expect(err).NotTo(HaveOccurred())
			cfg.Simulation.Steps = 3

			res, err := exp.Run(ctx, sim.Discard)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Steps).To(Equal(config.DefaultSteps))
		})

		It("runs every preset", func() {
			for _, name := range config.ListPresets() {
				exp, err := New(config.GetPreset(name))
				Expect(err).NotTo(HaveOccurred(), name)

				res, err := exp.Run(ctx, sim.Discard)
				Expect(err).NotTo(HaveOccurred(), name)
				Expect(res.Steps).To(Equal(exp.Config().Simulation.Steps), name)
			}
		})

		It("pushes the disturbed loop away from the setpoint", func() {
			clean, err := New(config.DefaultConfig())
			Expect(err).NotTo(HaveOccurred())
			disturbed, err := New(config.GetPreset("disturbed"))
			Expect(err).NotTo(HaveOccurred())

			a := sim.NewRecorder(400)
			b := sim.NewRecorder(400)
			_, err = clean.Run(ctx, a)
			Expect(err).NotTo(HaveOccurred())
			_, err = disturbed.Run(ctx, b)
			Expect(err).NotTo(HaveOccurred())

			// identical until the disturbance starts at t=20
			Expect(b.Records[:200]).To(Equal(a.Records))
			Expect(b.Records[399].Position).To(BeNumerically("<", 0.5))
		})
	})

	Describe("Registry", func() {
		It("lists the controllers", func() {
			Expect(NewRegistry().ListControllers()).To(Equal([]string{"lead", "pid"}))
		})
	})
})
