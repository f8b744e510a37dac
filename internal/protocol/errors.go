package protocol

import "errors"

var (
	ErrUnknownSensorType       = errors.New("protocol: unknown sensor type")
	ErrUnknownMotionDataType   = errors.New("protocol: unknown motion data type")
	ErrUnknownPressureDataType = errors.New("protocol: unknown pressure data type")
	ErrTruncatedFrame          = errors.New("protocol: truncated frame")
	ErrInvalidConfiguration    = errors.New("protocol: invalid configuration")
	ErrNotConnected            = errors.New("protocol: not connected")
)

// IsFrameFatal reports whether err aborts the whole buffer rather than one record.
func IsFrameFatal(err error) bool {
	return errors.Is(err, ErrUnknownSensorType) || errors.Is(err, ErrTruncatedFrame)
}
