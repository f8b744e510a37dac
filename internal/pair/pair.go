// Package pair combines the pressure streams of a left and right insole.
package pair

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/danmuck/stridelink/internal/event"
	"github.com/danmuck/stridelink/internal/protocol"
	"github.com/rs/zerolog/log"
)

type Side string

const (
	Left  Side = "left"
	Right Side = "right"
)

func ParseSide(raw string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(raw))) {
	case Left:
		return Left, nil
	case Right:
		return Right, nil
	}
	return "", fmt.Errorf("pair: unknown side %q", raw)
}

// SidePressure is the part of one insole's pressure state the pair uses.
type SidePressure struct {
	Sum          uint32         `json:"sum"`
	CenterOfMass protocol.Point `json:"centerOfMass"`
}

type Mass struct {
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Pressure is the combined result, tagged with the side whose update
// produced it and that side's frame timestamp.
type Pressure struct {
	Side         Side           `json:"side"`
	Timestamp    uint32         `json:"timestamp"`
	Sum          uint32         `json:"sum"`
	Mass         Mass           `json:"mass"`
	CenterOfMass protocol.Point `json:"centerOfMass"`
}

// Combine blends both sides. Shares are 0 when the total is 0.
func Combine(left, right SidePressure) Pressure {
	out := Pressure{Sum: left.Sum + right.Sum}
	if out.Sum > 0 {
		total := float64(out.Sum)
		out.Mass.Left = float64(left.Sum) / total
		out.Mass.Right = float64(right.Sum) / total
	}
	out.CenterOfMass.X = out.Mass.Right
	y := left.CenterOfMass.Y*out.Mass.Left + right.CenterOfMass.Y*out.Mass.Right
	if !math.IsNaN(y) {
		out.CenterOfMass.Y = y
	}
	return out
}

// Aggregator keeps the latest pressure of each side and republishes the
// combination on every update.
type Aggregator struct {
	bus *event.Bus

	mu     sync.Mutex
	sides  map[Side]SidePressure
	latest Pressure
}

func NewAggregator(bus *event.Bus) *Aggregator {
	return &Aggregator{
		bus:   bus,
		sides: make(map[Side]SidePressure, 2),
	}
}

// Update records one side's new pressure and returns the combined result.
func (a *Aggregator) Update(side Side, timestamp uint32, p SidePressure) Pressure {
	a.mu.Lock()
	a.sides[side] = p
	out := Combine(a.sides[Left], a.sides[Right])
	out.Side = side
	out.Timestamp = timestamp
	a.latest = out
	a.mu.Unlock()

	if a.bus != nil {
		a.bus.Publish(event.Event{
			Type:      event.PairPressure,
			Device:    string(side),
			Timestamp: timestamp,
			Value:     out,
		})
	}
	return out
}

func (a *Aggregator) Latest() Pressure {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// Attach feeds the aggregator from the array-form pressure events of the two
// named devices. It returns the cancel func of the subscription.
func (a *Aggregator) Attach(bus *event.Bus, leftDevice, rightDevice string) func() {
	return bus.Subscribe(event.Pressure, func(e event.Event) {
		var side Side
		switch e.Device {
		case leftDevice:
			side = Left
		case rightDevice:
			side = Right
		default:
			return
		}
		s, ok := e.Value.(protocol.PressureSample)
		if !ok {
			log.Warn().Msgf("pair.Aggregator.Attach unexpected value device=%s type=%T", e.Device, e.Value)
			return
		}
		a.Update(side, e.Timestamp, SidePressure{Sum: s.Sum, CenterOfMass: s.CenterOfMass})
	})
}
