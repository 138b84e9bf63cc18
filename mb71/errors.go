package mb71

import (
	"errors"
)

var ErrBeamCount = errors.New("Error Beam Count Out Of Range")
var ErrShortFrame = errors.New("Error Frame Buffer Too Short")
var ErrFrameSize = errors.New("Error Frame Size Invariant Violated")
var ErrNilSounding = errors.New("Error Nil Source Sounding")
