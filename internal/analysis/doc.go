// Package analysis characterizes a closed loop from two directions.
//
//   - [StepResponse]: time-domain figures from a recorded run (rise time,
//     overshoot, settling time, steady-state error)
//   - [ComputeMargins]: gain and phase margins of the continuous open loop
//     L(s) = kl(1+tau_z s)/(1+tau_p s) * 1/(s(m s + k))
//
// # Reading a run
//
//	recs := recorder.Records
//	info, err := analysis.StepResponse(recs, 0.02)
//	if err == nil && info.Overshoot > 20 {
//	    // too aggressive
//	}
package analysis
