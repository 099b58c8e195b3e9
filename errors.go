package epsoncan

import "errors"

var (
	ErrInvalidNodeId        = errors.New("node id must be between 1 and 127")
	ErrInvalidNodeCount     = errors.New("node count must be between 1 and 8")
	ErrUnknownDeviceProfile = errors.New("product code does not match any known device profile")
	ErrSDOTimeout           = errors.New("timed out waiting for SDO response")
	ErrUnsupportedWidth     = errors.New("SDO payload width must be 1, 2 or 4 bytes")
	ErrTransportClosed      = errors.New("transport is closed")
)
