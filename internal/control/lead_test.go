package control

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func referenceLead(t *testing.T) *LeadCompensator {
	t.Helper()
	c, err := NewLeadCompensator(LeadParams{
		Kl: 0.4, TauP: 1.0, TauZ: 18.0, T: 0.1, Max: 10, Min: -10, MaxRate: 100,
	})
	if err != nil {
		t.Fatalf("new lead compensator: %v", err)
	}
	return c
}

func TestLeadFirstTick(t *testing.T) {
	c := referenceLead(t)

	u := c.Step(0, 1)

	expected := 0.4 * (0.1*1.0 + 18.0*(1.0-0)) / (0.1 + 1.0)
	if math.Abs(float64(u)-expected) > 1e-5 {
		t.Errorf("expected command ~%.6f, got %.6f", expected, u)
	}
	if c.errorPrev != 1 {
		t.Errorf("expected stored error 1, got %f", c.errorPrev)
	}
	if c.commandPrev != u {
		t.Errorf("unsaturated command %f should equal output %f when within limits", c.commandPrev, u)
	}
}

func TestLeadZeroInputStaysZero(t *testing.T) {
	c := referenceLead(t)

	for i := 0; i < 500; i++ {
		if u := c.Step(0.75, 0.75); u != 0 {
			t.Fatalf("tick %d: expected zero command, got %g", i, u)
		}
	}
}

func TestLeadOutputBounds(t *testing.T) {
	c, err := NewLeadCompensator(LeadParams{
		Kl: 25, TauP: 0.5, TauZ: 4, T: 0.05, Max: 3, Min: -2, MaxRate: 20,
	})
	if err != nil {
		t.Fatalf("new lead compensator: %v", err)
	}
	rng := rand.New(rand.NewSource(7))
	maxStep := float32(c.out.MaxRate * c.out.T)

	for i := 0; i < 2000; i++ {
		prev := c.Last()
		u := c.Step(float32(rng.NormFloat64()*5), float32(rng.NormFloat64()*5))

		if u > 3 || u < -2 {
			t.Fatalf("tick %d: command %g outside [-2, 3]", i, u)
		}
		if u > prev+maxStep || u < prev-maxStep {
			t.Fatalf("tick %d: command moved from %g to %g, more than %g", i, prev, u, maxStep)
		}
	}
}

func TestLeadRateLimitFromNonzeroOutput(t *testing.T) {
	c, err := NewLeadCompensator(LeadParams{
		Kl: 100, TauP: 1, TauZ: 2, T: 0.1, Max: 1000, Min: -1000, MaxRate: 5,
	})
	if err != nil {
		t.Fatalf("new lead compensator: %v", err)
	}
	step := float32(c.out.MaxRate * c.out.T)

	first := c.Step(0, 1)
	if first != step {
		t.Fatalf("expected first command limited to %g, got %g", step, first)
	}

	second := c.Step(0, 1)
	if second != first+step {
		t.Errorf("expected command to move by exactly %g to %g, got %g", step, first+step, second)
	}
	if c.commandPrev <= second {
		t.Errorf("unsaturated command %g should run ahead of the limited output %g", c.commandPrev, second)
	}
}

func TestLeadInvalidParams(t *testing.T) {
	tests := []struct {
		name string
		p    LeadParams
	}{
		{"zero denominator", LeadParams{Kl: 1, TauP: -0.1, TauZ: 1, T: 0.1, Max: 1, Min: -1, MaxRate: 1}},
		{"zero dt", LeadParams{Kl: 1, TauP: 1, TauZ: 1, T: 0, Max: 1, Min: -1, MaxRate: 1}},
		{"inverted bounds", LeadParams{Kl: 1, TauP: 1, TauZ: 1, T: 0.1, Max: -1, Min: 1, MaxRate: 1}},
		{"negative rate", LeadParams{Kl: 1, TauP: 1, TauZ: 1, T: 0.1, Max: 1, Min: -1, MaxRate: -1}},
		{"nan gain", LeadParams{Kl: float32(math.NaN()), TauP: 1, TauZ: 1, T: 0.1, Max: 1, Min: -1, MaxRate: 1}},
		{"infinite zero", LeadParams{Kl: 1, TauP: 1, TauZ: float32(math.Inf(1)), T: 0.1, Max: 1, Min: -1, MaxRate: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLeadCompensator(tt.p)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}
