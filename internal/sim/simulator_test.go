package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/san-kum/leadsim/internal/control"
	"github.com/san-kum/leadsim/internal/plant"
)

type spyController struct {
	gain         float32
	measurements []float32
}

func (c *spyController) Step(measurement, setpoint float32) float32 {
	c.measurements = append(c.measurements, measurement)
	return c.gain * (setpoint - measurement)
}

type testPlant struct {
	z      float32
	forces []float32
	dists  []float32
}

func (p *testPlant) Step(force, disturbance float32) float32 {
	p.forces = append(p.forces, force)
	p.dists = append(p.dists, disturbance)
	p.z += 0.1 * (force - disturbance)
	return p.z
}

func (p *testPlant) Position() float32 { return p.z }

type failingSink struct {
	after int
	n     int
}

var errDiskFull = errors.New("disk full")

func (s *failingSink) Write(Record) error {
	s.n++
	if s.n > s.after {
		return errDiskFull
	}
	return nil
}

func TestDriverRun(t *testing.T) {
	ctrl := &spyController{gain: 2}
	p := &testPlant{z: 0.25}

	d, err := New(ctrl, p)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	rec := NewRecorder(10)
	result, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 10, Setpoint: 1}, rec)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.Steps != 10 {
		t.Errorf("expected 10 steps, got %d", result.Steps)
	}
	if len(rec.Records) != 10 {
		t.Fatalf("expected 10 records, got %d", len(rec.Records))
	}

	if ctrl.measurements[0] != 0.25 {
		t.Errorf("first measurement should be the plant's initial position, got %g", ctrl.measurements[0])
	}
	for i := 1; i < len(ctrl.measurements); i++ {
		if ctrl.measurements[i] != rec.Records[i-1].Position {
			t.Errorf("tick %d: measured %g, previous position was %g", i, ctrl.measurements[i], rec.Records[i-1].Position)
		}
	}
	for i, r := range rec.Records {
		if r.Command != p.forces[i] {
			t.Errorf("tick %d: record command %g, plant received %g", i, r.Command, p.forces[i])
		}
		if r.Setpoint != 1 {
			t.Errorf("tick %d: expected setpoint 1, got %g", i, r.Setpoint)
		}
	}
	if rec.Records[0].Time != 0 {
		t.Errorf("first record should be at t=0, got %g", rec.Records[0].Time)
	}
	if result.Final != rec.Records[9] {
		t.Errorf("final record %+v does not match last written %+v", result.Final, rec.Records[9])
	}
}

func TestDriverTimeAdvance(t *testing.T) {
	d, err := New(&spyController{}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	rec := NewRecorder(5)
	if _, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 5}, rec); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var want float32
	for i, r := range rec.Records {
		if r.Time != want {
			t.Errorf("tick %d: expected t=%v, got %v", i, want, r.Time)
		}
		want = float32(float64(want) + 0.1)
	}
}

func TestDriverDisturbance(t *testing.T) {
	p := &testPlant{}
	d, err := New(&spyController{}, p)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	cfg := Config{Dt: 0.5, Steps: 4, Disturbance: Disturbance{Force: 3, Start: 1.0}}
	if _, err := d.Run(context.Background(), cfg, Discard); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	want := []float32{0, 0, 3, 3}
	if diff := cmp.Diff(want, p.dists); diff != "" {
		t.Errorf("disturbance mismatch (-want +got):\n%s", diff)
	}
}

func TestDriverInvalidConfig(t *testing.T) {
	d, err := New(&spyController{}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero dt", Config{Dt: 0, Steps: 10}},
		{"negative dt", Config{Dt: -0.1, Steps: 10}},
		{"zero steps", Config{Dt: 0.1, Steps: 0}},
		{"negative steps", Config{Dt: 0.1, Steps: -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Run(context.Background(), tt.cfg, Discard)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDriverNilComponents(t *testing.T) {
	if _, err := New(nil, &testPlant{}); !errors.Is(err, ErrNilComponent) {
		t.Errorf("expected ErrNilComponent, got %v", err)
	}
	if _, err := New(&spyController{}, nil); !errors.Is(err, ErrNilComponent) {
		t.Errorf("expected ErrNilComponent, got %v", err)
	}
}

func TestDriverSinkError(t *testing.T) {
	d, err := New(&spyController{gain: 1}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}

	result, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 10, Setpoint: 1}, &failingSink{after: 3})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected wrapped sink error, got %v", err)
	}

	var simErr *SimulationError
	if !errors.As(err, &simErr) {
		t.Fatalf("expected *SimulationError, got %T", err)
	}
	if simErr.Step != 3 {
		t.Errorf("expected failure at step 3, got %d", simErr.Step)
	}
	if result.Steps != 3 {
		t.Errorf("expected 3 completed steps, got %d", result.Steps)
	}
}

func TestDriverCanceled(t *testing.T) {
	d, err := New(&spyController{}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = d.Run(ctx, Config{Dt: 0.1, Steps: 10}, Discard)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDriverRunsOnce(t *testing.T) {
	d, err := New(&spyController{gain: 1}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	cfg := Config{Dt: 0.1, Steps: 5, Setpoint: 1}
	if _, err := d.Run(context.Background(), cfg, Discard); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	rec := NewRecorder(5)
	result, err := d.Run(context.Background(), cfg, rec)
	if !errors.Is(err, ErrAlreadyRun) {
		t.Fatalf("expected ErrAlreadyRun, got %v", err)
	}
	if result != nil || len(rec.Records) != 0 {
		t.Errorf("second run should not tick, got result %+v and %d records", result, len(rec.Records))
	}
}

func TestDriverInvalidConfigDoesNotConsumeRun(t *testing.T) {
	d, err := New(&spyController{gain: 1}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	if _, err := d.Run(context.Background(), Config{Dt: 0, Steps: 5}, Discard); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
	if _, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 5}, Discard); err != nil {
		t.Errorf("valid run after a rejected config failed: %v", err)
	}
}

func TestDriverCanceledRunIsFinal(t *testing.T) {
	d, err := New(&spyController{}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Run(ctx, Config{Dt: 0.1, Steps: 10}, Discard); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 10}, Discard); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("expected ErrAlreadyRun after a canceled run, got %v", err)
	}
}

type countMetric struct {
	count int
	sum   float64
}

func (m *countMetric) Name() string { return "test" }
func (m *countMetric) Observe(rec Record) {
	m.count++
	m.sum += float64(rec.Position)
}
func (m *countMetric) Value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}
func (m *countMetric) Reset() {
	m.count = 0
	m.sum = 0
}

func TestDriverMetrics(t *testing.T) {
	d, err := New(&spyController{gain: 1}, &testPlant{})
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	metric := &countMetric{count: 99}
	d.AddMetric(metric)

	result, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 10, Setpoint: 1}, Discard)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, ok := result.Metrics["test"]; !ok {
		t.Error("metric not found in result")
	}
	if metric.count != 10 {
		t.Errorf("expected 10 observations, got %d", metric.count)
	}
}

func runReference(t *testing.T) []Record {
	t.Helper()
	lead, err := control.NewLeadCompensator(control.LeadParams{
		Kl: 0.4, TauP: 1, TauZ: 18, T: 0.1, Max: 10, Min: -10, MaxRate: 100,
	})
	if err != nil {
		t.Fatalf("new lead: %v", err)
	}
	md, err := plant.NewMassDamper(plant.Params{M: 10, K: 0.5, FMax: 10, FMin: -10, T: 0.1})
	if err != nil {
		t.Fatalf("new plant: %v", err)
	}
	d, err := New(lead, md)
	if err != nil {
		t.Fatalf("new driver: %v", err)
	}
	rec := NewRecorder(200)
	if _, err := d.Run(context.Background(), Config{Dt: 0.1, Steps: 200, Setpoint: 1}, rec); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return rec.Records
}

func TestClosedLoopDeterministic(t *testing.T) {
	first := runReference(t)
	second := runReference(t)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
}

func TestTeeStopsAtFirstError(t *testing.T) {
	a := NewRecorder(1)
	b := &failingSink{}
	c := NewRecorder(1)

	err := Tee(a, b, c).Write(Record{Time: 1})
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("expected sink error, got %v", err)
	}
	if len(a.Records) != 1 || len(c.Records) != 0 {
		t.Errorf("expected only the first sink to receive the record, got %d and %d", len(a.Records), len(c.Records))
	}
}
