package mb1

import (
	"errors"
)

var ErrBeamCount = errors.New("Error Beam Count Out Of Range")
var ErrShortFrame = errors.New("Error Frame Buffer Too Short")
var ErrFrameType = errors.New("Error Invalid Frame Type Tag")
var ErrFrameSize = errors.New("Error Frame Size Invariant Violated")
var ErrChecksum = errors.New("Error Frame Checksum Mismatch")
