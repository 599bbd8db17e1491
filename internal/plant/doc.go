// Package plant provides discrete-time plant models driven by a bounded
// actuator.
//
// [MassDamper] integrates a damped point mass m*dv/dt = F - k*v - Fd with
// explicit Euler at a fixed step, velocity first, then position. All state
// is single precision.
package plant
