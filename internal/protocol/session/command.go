package session

import "fmt"

// Command is one host-to-device entry: a kind and its encoded argument.
// Get commands carry no payload.
type Command struct {
	Kind    Kind
	Payload []byte
}

// EncodeCommands concatenates commands as [kind][payload]*.
func EncodeCommands(cmds ...Command) []byte {
	var out []byte
	for _, c := range cmds {
		out = append(out, byte(c.Kind))
		out = append(out, c.Payload...)
	}
	return out
}

// DecodeCommands is the device-side reader for EncodeCommands output.
func DecodeCommands(buf []byte) ([]Command, error) {
	var out []Command
	off := 0
	for off < len(buf) {
		kind := Kind(buf[off])
		off++
		rest := buf[off:]
		var n int
		var err error
		switch {
		case kind.IsGet():
			n = 0
		case kind == SetDebug || kind == SetType:
			n, err = need(rest, 1)
		case kind == SetName, kind == SetSensorDataConfigurations:
			n, err = need(rest, 1)
			if err == nil {
				n, err = need(rest, 1+int(rest[0]))
			}
		case kind == SetWeightDataDelay:
			n, err = need(rest, 2)
		default:
			return out, fmt.Errorf("%w: %s at offset %d", ErrInvalidKind, kind, off-1)
		}
		if err != nil {
			return out, fmt.Errorf("%s: %w", kind, err)
		}
		out = append(out, Command{Kind: kind, Payload: rest[:n]})
		off += n
	}
	return out, nil
}
