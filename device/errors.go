package device

import "errors"

// ErrEmptyDeviceID indicates a device notification without a device ID.
var ErrEmptyDeviceID = errors.New("empty device id")
