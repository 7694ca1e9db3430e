// Package feature computes the fixed hand-angle feature vector consumed by
// the sign classifier.
package feature

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// Finger landmark chains, wrist-side base to fingertip.
var (
	ThumbChain  = [4]int{detector.ThumbCMC, detector.ThumbMCP, detector.ThumbIP, detector.ThumbTip}
	IndexChain  = [4]int{detector.IndexMCP, detector.IndexPIP, detector.IndexDIP, detector.IndexTip}
	MiddleChain = [4]int{detector.MiddleMCP, detector.MiddlePIP, detector.MiddleDIP, detector.MiddleTip}
	RingChain   = [4]int{detector.RingMCP, detector.RingPIP, detector.RingDIP, detector.RingTip}
	PinkyChain  = [4]int{detector.PinkyMCP, detector.PinkyPIP, detector.PinkyDIP, detector.PinkyTip}
)

// AngleBetween returns the angle in degrees at vertex formed by the rays to
// p1 and p3, computed from the dot product over 3D vectors. The result is in
// [0, 180]. Degenerate input (a zero-length ray) or a non-finite intermediate
// yields exactly 0; the clamp keeps the classifier's input numerically stable
// and must not be removed.
func AngleBetween(p1, vertex, p3 detector.Point3D) float64 {
	ax := p1.X - vertex.X
	ay := p1.Y - vertex.Y
	az := p1.Z - vertex.Z
	bx := p3.X - vertex.X
	by := p3.Y - vertex.Y
	bz := p3.Z - vertex.Z

	magA := math.Sqrt(ax*ax + ay*ay + az*az)
	magB := math.Sqrt(bx*bx + by*by + bz*bz)
	if magA == 0 || magB == 0 {
		return 0
	}

	cos := (ax*bx + ay*by + az*bz) / (magA * magB)
	// Floating point can push the cosine just outside [-1, 1]
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}

	deg := math.Acos(cos) * 180 / math.Pi
	if math.IsNaN(deg) {
		return 0
	}
	return deg
}

// FingerAngle returns the mean of the two interior joint angles along a
// 4-point finger chain. Returns 0 if the landmark set is missing or too
// short for the chain.
func FingerAngle(points []detector.Point3D, chain [4]int) float64 {
	for _, idx := range chain {
		if idx >= len(points) {
			return 0
		}
	}

	a := AngleBetween(points[chain[0]], points[chain[1]], points[chain[2]])
	b := AngleBetween(points[chain[1]], points[chain[2]], points[chain[3]])
	return (a + b) / 2
}

// PalmAngles returns two planar angles approximating palm orientation: the
// absolute screen-space angle of the wrist→index-MCP vector and of the
// wrist→pinky-MCP vector, in degrees. These are 2D projections, not true
// plane normals; the trained model expects exactly this formulation.
func PalmAngles(points []detector.Point3D) (left, right float64) {
	if len(points) <= detector.PinkyMCP {
		return 0, 0
	}

	wrist := points[detector.Wrist]
	index := points[detector.IndexMCP]
	pinky := points[detector.PinkyMCP]

	left = planarAngle(wrist, index)
	right = planarAngle(wrist, pinky)
	return left, right
}

// GroundAngle returns the absolute screen-space angle of the wrist→middle-MCP
// vector in degrees, a coarse proxy for hand tilt relative to the ground.
func GroundAngle(points []detector.Point3D) float64 {
	if len(points) <= detector.MiddleMCP {
		return 0
	}
	return planarAngle(points[detector.Wrist], points[detector.MiddleMCP])
}

func planarAngle(from, to detector.Point3D) float64 {
	deg := math.Atan2(to.Y-from.Y, to.X-from.X) * 180 / math.Pi
	deg = math.Abs(deg)
	if math.IsNaN(deg) {
		return 0
	}
	return deg
}
