package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a run configuration that cannot be executed.
	ErrInvalidConfig = errors.New("sim: invalid run configuration")

	// ErrNilComponent indicates a driver built without a controller or plant.
	ErrNilComponent = errors.New("sim: controller and plant are required")

	// ErrAlreadyRun indicates a second Run on a driver whose components
	// already carry state from an earlier run.
	ErrAlreadyRun = errors.New("sim: driver has already run")
)

// SimulationError wraps an error with the tick it occurred on.
type SimulationError struct {
	Step    int
	Time    float32
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
