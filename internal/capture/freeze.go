package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// FreezeDetector detects a frozen camera stream by frame differencing: a run
// of consecutive frames whose pixel change stays below a threshold means the
// driver is replaying a stuck buffer even though reads still succeed.
type FreezeDetector struct {
	changeThreshold float64
	limit           int
	static          int
	prevGray        gocv.Mat
	initialized     bool
	mu              sync.Mutex
}

// Freeze detection constants
const (
	// FreezeBlurSize is the kernel size for Gaussian blur (21x21)
	FreezeBlurSize = 21
	// FreezeDiffThreshold is the binary threshold for difference detection
	FreezeDiffThreshold = 25
	// DefaultChangeThreshold is the minimum percent of changed pixels for a
	// frame to count as live.
	DefaultChangeThreshold = 0.02
	// DefaultFreezeLimit is how many consecutive static frames mean frozen
	// (~3s at 15 FPS).
	DefaultFreezeLimit = 45
)

// NewFreezeDetector creates a FreezeDetector. changeThreshold is the percent
// of pixels that must change between frames for the stream to count as live;
// limit is the number of consecutive static frames before Check reports
// frozen. Zero or negative arguments select the defaults.
func NewFreezeDetector(changeThreshold float64, limit int) *FreezeDetector {
	if changeThreshold <= 0 {
		changeThreshold = DefaultChangeThreshold
	}
	if limit <= 0 {
		limit = DefaultFreezeLimit
	}
	return &FreezeDetector{
		changeThreshold: changeThreshold,
		limit:           limit,
		prevGray:        gocv.NewMat(),
	}
}

// Check compares frame against the previous one and reports whether the
// stream looks frozen.
//
// Algorithm:
//  1. Convert frame to grayscale and blur to reduce sensor noise
//  2. First frame becomes the baseline, stream counts as live
//  3. Absolute difference with previous frame, binary threshold
//  4. Percent of changed pixels below changeThreshold extends the static
//     run; otherwise the run resets
//  5. Frozen once the run reaches limit
func (f *FreezeDetector) Check(frame *gocv.Mat) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false
	}

	gray := gocv.NewMat()
	defer gray.Close()

	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: FreezeBlurSize, Y: FreezeBlurSize}, 0, 0, gocv.BorderDefault)

	if !f.initialized {
		blurred.CopyTo(&f.prevGray)
		f.initialized = true
		f.static = 0
		return false
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, f.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, FreezeDiffThreshold, 255, gocv.ThresholdBinary)

	nonZero := gocv.CountNonZero(thresh)
	totalPixels := thresh.Rows() * thresh.Cols()

	changePercent := float64(nonZero) / float64(totalPixels) * 100.0

	blurred.CopyTo(&f.prevGray)

	if changePercent < f.changeThreshold {
		f.static++
	} else {
		f.static = 0
	}

	return f.static >= f.limit
}

// StaticFrames returns the current consecutive static frame count.
func (f *FreezeDetector) StaticFrames() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.static
}

// Reset clears the detector state, allowing reuse with a new baseline frame.
func (f *FreezeDetector) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.prevGray.Empty() {
		f.prevGray.Close()
		f.prevGray = gocv.NewMat()
	}
	f.initialized = false
	f.static = 0
}

// Close releases resources used by the freeze detector.
func (f *FreezeDetector) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.prevGray.Empty() {
		f.prevGray.Close()
		f.prevGray = gocv.NewMat()
	}
	f.initialized = false
	f.static = 0
}
