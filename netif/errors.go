package netif

import (
	"errors"
)

var ErrNoPublisher = errors.New("Error Publish Callback Or Data Missing")
