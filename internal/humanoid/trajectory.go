package humanoid

import (
	"math"
	"math/rand"
	"time"
)

// Fitts's law coefficients in milliseconds, and the assumed target width.
const (
	fittsA      = 80.0
	fittsB      = 120.0
	fittsWidth  = 30.0
	stepsPerSec = 60.0
	minSteps    = 4
	maxSteps    = 60
)

// easeInOutCubic maps linear progress to an accelerate-then-decelerate curve.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// movementTime estimates how long a person takes to cover distance, with
// +/-15% jitter.
func movementTime(distance float64, rng *rand.Rand) time.Duration {
	id := math.Log2(1.0 + distance/fittsWidth)
	mt := fittsA + fittsB*id
	if rng != nil {
		mt += mt * (rng.Float64()*0.3 - 0.15)
	}
	return time.Duration(mt * float64(time.Millisecond))
}

// stepsFor returns how many intermediate pointer positions to emit.
func stepsFor(d time.Duration) int {
	n := int(d.Seconds() * stepsPerSec)
	if n < minSteps {
		return minSteps
	}
	if n > maxSteps {
		return maxSteps
	}
	return n
}

// Path returns numSteps points along a gently curved cubic Bezier from start
// to end, spaced by easeInOutCubic. The last point is exactly end.
func Path(start, end Vector2D, numSteps int, rng *rand.Rand) []Vector2D {
	dist := start.Dist(end)
	if dist < 1.0 || numSteps < 2 {
		return []Vector2D{end}
	}

	dir := end.Sub(start).Normalize()
	bow := dist * 0.08
	if rng != nil {
		bow *= rng.Float64()*2 - 1
	}
	offset := dir.Perp().Mul(bow)
	p0, p3 := start, end
	p1 := start.Add(dir.Mul(dist / 3)).Add(offset)
	p2 := start.Add(dir.Mul(dist * 2 / 3)).Add(offset)

	path := make([]Vector2D, numSteps)
	for i := range path {
		t := easeInOutCubic(float64(i) / float64(numSteps-1))
		omt := 1 - t
		path[i] = p0.Mul(omt * omt * omt).
			Add(p1.Mul(3 * omt * omt * t)).
			Add(p2.Mul(3 * omt * t * t)).
			Add(p3.Mul(t * t * t))
	}
	path[numSteps-1] = end
	return path
}
