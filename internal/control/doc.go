// Package control provides discrete-time feedback controllers for a single
// control axis.
//
// Controllers run at a fixed step T and share the same output stage:
//
//   - [LeadCompensator]: recursive lead filter kl*(1+tau_z*s)/(1+tau_p*s)
//   - [PID]: fixed-step proportional-integral-derivative controller
//   - [OutputLimiter]: saturation followed by rate limiting
//
// # Usage
//
//	lead, err := control.NewLeadCompensator(control.LeadParams{
//	    Kl: 0.4, TauP: 1, TauZ: 18, T: 0.1, Max: 10, Min: -10, MaxRate: 100,
//	})
//	u := lead.Step(measurement, setpoint)
//
// All arithmetic is single precision. Controllers are not safe for
// concurrent use; each control loop owns its own instance.
package control
