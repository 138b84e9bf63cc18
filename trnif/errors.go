package trnif

import (
	"errors"
)

var ErrParse = errors.New("Error Malformed Protocol Message")
var ErrMsgSize = errors.New("Error Message Exceeds Blob Size")
var ErrChecksum = errors.New("Error Message Checksum Mismatch")
var ErrNoData = errors.New("Error No Data Pending")
var ErrNoResource = errors.New("Error Port Resource Missing Or Wrong Type")
