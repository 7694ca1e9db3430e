package session

import (
	"context"
	"fmt"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classify"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feature"
)

// pipeline is the per-frame loop while RUNNING:
// capture → freeze check → hand detection → feature extraction →
// classification → host callback. Each frame is processed to completion
// before the next tick is accepted, so classification requests never
// overlap and callbacks arrive in frame order.
func (c *Controller) pipeline(stopCh chan struct{}) {
	ticker := time.NewTicker(c.config.FrameInterval)
	defer ticker.Stop()

	freeze := capture.NewFreezeDetector(0, c.config.FreezeLimit)
	defer freeze.Close()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !c.processFrame(stopCh, freeze) {
				return
			}
			// A completed frame is the proof of recovery; the retry budget
			// refills here, not on re-entering RUNNING.
			c.mu.Lock()
			if c.stopCh == stopCh {
				c.retryCount = 0
			}
			c.mu.Unlock()
		}
	}
}

// processFrame runs one frame through the pipeline. It returns false when
// the session has failed and the loop must exit.
func (c *Controller) processFrame(stopCh chan struct{}, freeze *capture.FreezeDetector) bool {
	cam := c.config.Camera

	frame, err := cam.ReadFrame()
	if err != nil {
		c.fail(stopCh, Classify(err), failOpts{})
		return false
	}

	now := time.Now()
	c.mu.Lock()
	c.lastFrame = now
	wantJPEG := c.streamClients > 0
	c.mu.Unlock()

	frozen := freeze.Check(frame)
	if frozen {
		frame.Close()
		err := fmt.Errorf("camera stream frozen: identical frames from device")
		c.fail(stopCh, Classify(err), failOpts{
			minDelay: c.config.RecoveryDelay,
			retryCap: 1,
		})
		return false
	}

	// Encode for live-view consumers while the frame is still open.
	var jpeg []byte
	if wantJPEG {
		if buf, err := gocv.IMEncode(".jpg", *frame); err == nil {
			jpeg = append([]byte(nil), buf.GetBytes()...)
			buf.Close()
		}
	}

	hands, err := c.config.Detector.Detect(frame)
	frame.Close()
	if err != nil {
		c.fail(stopCh, classifyDetection(err), failOpts{})
		return false
	}

	left, right := detector.SplitHands(hands)
	var leftPts, rightPts []detector.Point3D
	if left != nil {
		leftPts = left.Points[:]
	}
	if right != nil {
		rightPts = right.Points[:]
	}

	rec := feature.Extract(leftPts, rightPts)

	if len(hands) > 0 {
		c.mu.Lock()
		c.lastGround = feature.GroundAngle(hands[0].Points[:])
		c.mu.Unlock()
	}

	f := Frame{
		Hands:     hands,
		Features:  rec,
		Timestamp: now,
		JPEG:      jpeg,
	}

	// Empty frames still reach listeners (live UI keeps moving) but are not
	// worth a classifier round trip, and nothing invalid may cross the wire.
	if len(hands) == 0 || !feature.Validate(rec) {
		c.publish(stopCh, f)
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), classify.DefaultTimeout)
	res, err := c.config.Classifier.Predict(ctx, rec)
	cancel()
	if err != nil {
		c.fail(stopCh, Classify(err), failOpts{})
		return false
	}

	f.Sign = res.PredictedSign
	f.Confidence = res.Confidence
	c.publish(stopCh, f)

	c.deliver(stopCh, res.PredictedSign, Detection{
		IsTarget:   res.PredictedSign == c.config.TargetSign,
		Confidence: res.Confidence,
	})

	return true
}

// deliver invokes the host's detection callback unless the session has been
// stopped or superseded, in which case the result is discarded. The delivery
// lock makes the staleness check atomic with Stop, so a stop landing
// mid-frame can never be followed by that frame's callback.
func (c *Controller) deliver(stopCh chan struct{}, sign string, det Detection) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	stale := c.stopCh != stopCh
	cb := c.config.Callbacks.OnSignDetected
	c.mu.Unlock()

	if stale || cb == nil {
		return
	}
	cb(sign, det)
}

// publish fans a processed frame out to registered listeners, subject to the
// same staleness rule as deliver.
func (c *Controller) publish(stopCh chan struct{}, f Frame) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	stale := c.stopCh != stopCh
	fns := make([]func(Frame), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	if stale {
		return
	}
	for _, fn := range fns {
		fn(f)
	}
}
