package plant

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParams indicates plant parameters that cannot be integrated.
var ErrInvalidParams = errors.New("plant: invalid parameters")

const (
	DefaultMass    = 10.0
	DefaultDamping = 0.5
	DefaultForce   = 10.0
)

// Params are the fixed parameters of a MassDamper.
type Params struct {
	M    float32 // mass, kg
	K    float32 // viscous damping, N*s/m
	FMax float32
	FMin float32
	T    float32 // time step, s
}

type MassDamper struct {
	M    float32
	K    float32
	FMax float32
	FMin float32
	T    float32
	v    float32
	z    float32
}

func NewMassDamper(p Params) (*MassDamper, error) {
	for _, f := range []struct {
		name string
		v    float32
	}{{"m", p.M}, {"k", p.K}, {"F_max", p.FMax}, {"F_min", p.FMin}, {"T", p.T}} {
		if math.IsNaN(float64(f.v)) || math.IsInf(float64(f.v), 0) {
			return nil, fmt.Errorf("%w: %s is not finite", ErrInvalidParams, f.name)
		}
	}
	if p.M == 0 {
		return nil, fmt.Errorf("%w: mass must be non-zero", ErrInvalidParams)
	}
	if p.FMin > p.FMax {
		return nil, fmt.Errorf("%w: F_min %g exceeds F_max %g", ErrInvalidParams, p.FMin, p.FMax)
	}
	if p.T <= 0 {
		return nil, fmt.Errorf("%w: T must be positive, got %g", ErrInvalidParams, p.T)
	}
	return &MassDamper{M: p.M, K: p.K, FMax: p.FMax, FMin: p.FMin, T: p.T}, nil
}

// Clamp returns the force the actuator can actually apply.
func (md *MassDamper) Clamp(force float32) float32 {
	if force > md.FMax {
		return md.FMax
	}
	if force < md.FMin {
		return md.FMin
	}
	return force
}

// Step applies force (clamped) and the unsaturated disturbance for one
// time step and returns the new position.
func (md *MassDamper) Step(force, disturbance float32) float32 {
	f := md.Clamp(force)

	dvdt := (f - float32(md.K*md.v) - disturbance) / md.M

	md.v += float32(dvdt * md.T)
	md.z += float32(md.v * md.T)

	return md.z
}

func (md *MassDamper) Position() float32 { return md.z }
func (md *MassDamper) Velocity() float32 { return md.v }

