package control

import "errors"

// ErrInvalidParams indicates controller parameters that would make the
// recursion ill-defined or the output stage inconsistent.
var ErrInvalidParams = errors.New("control: invalid parameters")
