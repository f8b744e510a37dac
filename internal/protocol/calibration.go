package protocol

// CalibrationSize is the wire size of a calibration record.
const CalibrationSize = 4

// Calibration holds per-subsystem IMU confidence, 0 (none) to 3 (full).
type Calibration struct {
	System        uint8 `json:"system"`
	Gyroscope     uint8 `json:"gyroscope"`
	Accelerometer uint8 `json:"accelerometer"`
	Magnetometer  uint8 `json:"magnetometer"`
}

func (c Calibration) IsFullyCalibrated() bool {
	return c.System == 3 && c.Gyroscope == 3 && c.Accelerometer == 3 && c.Magnetometer == 3
}

// DecodeCalibration reads one calibration record and returns the bytes consumed.
func DecodeCalibration(b []byte) (Calibration, int, error) {
	c := newCursor(b)
	raw, err := c.bytes(CalibrationSize)
	if err != nil {
		return Calibration{}, 0, err
	}
	return Calibration{
		System:        raw[0],
		Gyroscope:     raw[1],
		Accelerometer: raw[2],
		Magnetometer:  raw[3],
	}, CalibrationSize, nil
}

func EncodeCalibration(c Calibration) []byte {
	return []byte{c.System, c.Gyroscope, c.Accelerometer, c.Magnetometer}
}
