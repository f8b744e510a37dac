package protocol

// Point is a position in normalized insole space (0..1 on both axes).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout is the per-channel sensor position table of one hardware revision,
// given for the left insole. The right insole mirrors x.
type Layout []Point

const (
	insoleWidthMM  = 93.257
	insoleHeightMM = 265.069
)

var defaultLayoutMM = [][2]float64{
	{59.55, 32.3},
	{33.1, 42.15},

	{69.5, 55.5},
	{44.11, 64.8},
	{20.3, 71.9},

	{63.8, 81.1},
	{41.44, 90.8},
	{19.2, 102.8},

	{48.3, 119.7},
	{17.8, 130.5},

	{43.3, 177.7},
	{18.0, 177.0},

	{43.3, 200.6},
	{18.0, 200.0},

	{43.5, 242.0},
	{18.55, 242.1},
}

// DefaultLayout returns the 16-channel table of the current insole revision.
func DefaultLayout() Layout {
	return LayoutFromMM(defaultLayoutMM, insoleWidthMM, insoleHeightMM)
}

// LayoutFromMM normalizes millimetre positions by the insole outline.
func LayoutFromMM(positions [][2]float64, widthMM, heightMM float64) Layout {
	out := make(Layout, len(positions))
	for i, p := range positions {
		out[i] = Point{X: p[0] / widthMM, Y: p[1] / heightMM}
	}
	return out
}

func (l Layout) Channels() int {
	return len(l)
}

// Position returns the channel position, mirrored in x when right is set.
func (l Layout) Position(index int, right bool) Point {
	p := l[index]
	if right {
		p.X = 1 - p.X
	}
	return p
}
