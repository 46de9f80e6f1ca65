package deck

import "math"

// Direction is the discrete outcome of a card release gesture.
type Direction string

const (
	// DirectionNone means the release did not travel far enough to decide.
	DirectionNone Direction = ""
	// DirectionLeft rejects the card.
	DirectionLeft Direction = "left"
	// DirectionRight accepts the card.
	DirectionRight Direction = "right"
	// DirectionUp marks the card as a maybe.
	DirectionUp Direction = "up"
)

// Offset is the 2D displacement of a drag release relative to its origin.
// Y grows downward, matching screen coordinates.
type Offset struct {
	X float64
	Y float64
}

// Interpret converts a release offset into a swipe direction. Releases under
// the threshold on both axes decide nothing. A vertically dominant release
// decides only when it travels upward past the threshold; downward motion
// never decides. Horizontally dominant releases decide by sign.
func Interpret(offset Offset, threshold float64) Direction {
	if math.Abs(offset.X) < threshold && math.Abs(offset.Y) < threshold {
		return DirectionNone
	}
	if math.Abs(offset.Y) > math.Abs(offset.X) {
		if offset.Y <= -threshold {
			return DirectionUp
		}
		return DirectionNone
	}
	if offset.X >= 0 {
		return DirectionRight
	}
	return DirectionLeft
}
