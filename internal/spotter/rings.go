package spotter

import "strconv"

// RingOuter is the ring value of a mark falling outside every ring.
const RingOuter = 0

// RingLabel renders a ring value for display.
func RingLabel(ring int) string {
	if ring == RingOuter {
		return "outer"
	}
	return strconv.Itoa(ring)
}

// ScoreRing maps a surface-relative position (percent of surface width
// and height) to a ring value given precomputed ring bounds. Each
// bound is treated as an ellipse; the point scores the innermost ring
// whose ellipse contains it, or RingOuter outside all rings.
//
// Bounds index-correspond to rings; both come from the same
// TargetDefinition via Calibration.RingBounds.
func ScoreRing(xPct, yPct float64, bounds []FracRect, rings []TargetRing) int {
	best := RingOuter
	for i, b := range bounds {
		if i >= len(rings) {
			break
		}
		if pointInEllipse(xPct, yPct, b) {
			// Rings are ordered outermost first, so later matches are
			// smaller rings with higher values.
			if rings[i].Value > best {
				best = rings[i].Value
			}
		}
	}
	return best
}

// pointInEllipse checks (x-h)²/rx² + (y-k)²/ry² ≤ 1 for the ellipse
// inscribed in the rect.
func pointInEllipse(x, y float64, rect FracRect) bool {
	rx := rect.Width / 2
	ry := rect.Height / 2
	if rx <= 0 || ry <= 0 {
		return false
	}
	h, k := rect.Center()
	dx := (x - h) / rx
	dy := (y - k) / ry
	return dx*dx+dy*dy <= 1
}
