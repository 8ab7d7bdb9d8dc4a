package generation

// Scorer maps an option's position within its question to a point value.
type Scorer func(position int) int

var positionPoints = [...]int{10, 5, 0, -5}

// PointsForPosition is the default Scorer: options are trusted to arrive best
// first, so position 0 earns 10, then 5, 0 and -5. Positions past the table
// score as the worst option.
func PointsForPosition(position int) int {
	if position < 0 {
		return 0
	}
	if position >= len(positionPoints) {
		return positionPoints[len(positionPoints)-1]
	}
	return positionPoints[position]
}
