// Package session owns the capture device and the per-frame recognition
// pipeline, and keeps both recoverable across an unreliable capture and
// inference stack.
package session

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/classify"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/feature"
)

// State is the controller's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateRunning State = "running"
	StateError   State = "error"
	StateStopped State = "stopped"
)

// Timing defaults. The detector poll window is PollAttempts * PollInterval
// (15s); the health monitor flags a stall after StallTimeout without frames
// and recovers once after RecoveryDelay.
const (
	DefaultPollInterval   = 250 * time.Millisecond
	DefaultPollAttempts   = 60
	DefaultFrameInterval  = 66 * time.Millisecond
	DefaultHealthInterval = 5 * time.Second
	DefaultStallTimeout   = 10 * time.Second
	DefaultRecoveryDelay  = 2 * time.Second
)

var errStopped = errors.New("session stopped")

// Detection accompanies each recognized sign delivered to the host.
type Detection struct {
	IsTarget   bool    `json:"is_target"`
	Confidence float64 `json:"confidence"`
}

// Callbacks is the host's receiving interface. OnReady fires once per
// session when RUNNING is first reached; OnSignDetected fires once per
// classified frame, in frame completion order; OnError fires on every ERROR
// transition with the normalized descriptor.
type Callbacks struct {
	OnReady        func()
	OnSignDetected func(sign string, det Detection)
	OnError        func(err *ClassifiedError)
}

// Frame is the per-frame snapshot published to frame listeners (live UI,
// sample recording). Sign and Confidence are zero when the frame was not
// classified. JPEG holds the encoded frame image only while a stream
// consumer is attached via AcquireStream.
type Frame struct {
	Hands      []detector.HandLandmarks `json:"hands"`
	Features   feature.Record           `json:"features"`
	Sign       string                   `json:"sign,omitempty"`
	Confidence float64                  `json:"confidence,omitempty"`
	Timestamp  time.Time                `json:"timestamp"`
	JPEG       []byte                   `json:"-"`
}

// Config configures a Controller. Camera, Detector and Classifier are
// injected so hosts and tests control the collaborators; zero timing fields
// select the defaults above.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Classifier classify.Classifier

	// TargetSign is compared against each prediction for Detection.IsTarget.
	TargetSign string
	// ShowUI tells the host process to surface its built-in UI.
	ShowUI    bool
	Callbacks Callbacks

	// CameraID and ClassifierURL feed the pre-flight capability check.
	CameraID      int
	ClassifierURL string
	// Preflight overrides the default capability check (capture.Preflight).
	Preflight func(deviceID int, classifierURL string) ([]string, error)

	PollInterval   time.Duration
	PollAttempts   int
	FrameInterval  time.Duration
	HealthInterval time.Duration
	StallTimeout   time.Duration
	RecoveryDelay  time.Duration
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	// FreezeLimit is the consecutive-static-frame threshold for the
	// in-pipeline freeze check.
	FreezeLimit int
}

// Controller drives one recognition session: it exclusively owns the camera,
// the detector instance and the health monitor, and all state transitions
// happen through it.
type Controller struct {
	config Config

	// deliverMu makes each host callback atomic with Stop: the staleness
	// check and the invocation happen under it, and Stop flips the session
	// state while holding it.
	deliverMu sync.Mutex

	mu            sync.Mutex
	state         State
	retryCount    int
	lastFrame     time.Time
	lastGround    float64
	lastError     *ClassifiedError
	stopCh        chan struct{}
	retryTimer    *time.Timer
	readySent     bool
	listeners     map[int]func(Frame)
	nextListener  int
	streamClients int
}

// New creates a Controller in the IDLE state. Missing timing fields get the
// spec defaults.
func New(config Config) *Controller {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.PollAttempts <= 0 {
		config.PollAttempts = DefaultPollAttempts
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = DefaultFrameInterval
	}
	if config.HealthInterval <= 0 {
		config.HealthInterval = DefaultHealthInterval
	}
	if config.StallTimeout <= 0 {
		config.StallTimeout = DefaultStallTimeout
	}
	if config.RecoveryDelay <= 0 {
		config.RecoveryDelay = DefaultRecoveryDelay
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.BaseBackoff <= 0 {
		config.BaseBackoff = DefaultBaseBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = DefaultMaxBackoff
	}
	if config.Preflight == nil {
		config.Preflight = capture.Preflight
	}

	return &Controller{
		config:     config,
		state:      StateIdle,
		lastGround: math.NaN(),
		listeners:  make(map[int]func(Frame)),
	}
}

// Start begins a fresh session: pre-flight check, detector load, camera
// acquisition, then the frame pipeline. It returns quickly; progress is
// observed through the callbacks. Calling Start while loading or running is
// a no-op.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.state == StateLoading || c.state == StateRunning {
		c.mu.Unlock()
		return nil
	}
	preflight := c.config.Preflight
	c.mu.Unlock()

	// Fail fast on a doomed environment, before any device acquisition.
	warnings, err := preflight(c.config.CameraID, c.config.ClassifierURL)
	for _, w := range warnings {
		log.Printf("preflight warning: %s", w)
	}
	if err != nil {
		cls := Classify(err)
		c.mu.Lock()
		c.state = StateError
		c.lastError = cls
		c.mu.Unlock()
		c.notifyError(cls)
		return cls
	}

	c.mu.Lock()
	c.state = StateLoading
	c.retryCount = 0
	c.lastError = nil
	c.readySent = false
	ch := make(chan struct{})
	c.stopCh = ch
	c.mu.Unlock()

	go c.run(ch)
	return nil
}

// Stop halts the session from any state: the health monitor and pipeline are
// signalled synchronously, any pending retry is cancelled, and the camera
// and detector are released. In-flight results are discarded, never
// delivered. Each release step is independently guarded so one failure
// cannot block the rest of the teardown.
func (c *Controller) Stop() {
	// Holding the delivery lock while flipping the state means any callback
	// either completes before the stop takes effect or observes it and is
	// discarded; once Stop returns, no callback is running.
	c.deliverMu.Lock()
	c.mu.Lock()
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.stopCh != nil {
		close(c.stopCh)
		c.stopCh = nil
	}
	alreadyStopped := c.state == StateStopped
	c.state = StateStopped
	c.mu.Unlock()
	c.deliverMu.Unlock()

	if alreadyStopped {
		return
	}

	if err := c.config.Camera.Close(); err != nil {
		log.Printf("close camera: %v", err)
	}
	if c.config.Detector != nil {
		if err := c.config.Detector.Close(); err != nil {
			log.Printf("close detector: %v", err)
		}
	}

	log.Println("Session stopped")
}

// Restart stops the session and starts a fresh one.
func (c *Controller) Restart() error {
	c.Stop()
	return c.Start()
}

// Retry re-enters LOADING from ERROR at the host's request, bypassing any
// pending automatic retry.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.state != StateError {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("retry is only valid from the error state (current: %s)", state)
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()

	c.retryFromError()
	return nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns how many automatic retries the current recovery cycle
// has consumed.
func (c *Controller) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// LastError returns the most recent classified error, or nil.
func (c *Controller) LastError() *ClassifiedError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// TargetSign returns the sign this session practices.
func (c *Controller) TargetSign() string {
	return c.config.TargetSign
}

// ShowUI reports whether the host should surface its built-in UI.
func (c *Controller) ShowUI() bool {
	return c.config.ShowUI
}

// CalibrationAngle returns the ground angle of the most recently seen hand,
// or NaN when no hand has been observed yet. Hosts use it to let a learner
// calibrate a personal upright offset.
func (c *Controller) CalibrationAngle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastGround
}

// AddFrameListener registers fn to receive every processed frame. The
// returned function removes the listener. Listeners run on the pipeline
// goroutine and must return quickly.
func (c *Controller) AddFrameListener(fn func(Frame)) func() {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// AcquireStream registers a live-view consumer. While at least one consumer
// is attached, processed frames carry their JPEG encoding. The returned
// function releases the claim and is safe to call more than once.
func (c *Controller) AcquireStream() func() {
	c.mu.Lock()
	c.streamClients++
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			c.streamClients--
			c.mu.Unlock()
		})
	}
}

// run carries a session from LOADING to RUNNING and then hands over to the
// pipeline. stopCh identifies this session generation; any state owned by an
// older generation is ignored.
func (c *Controller) run(stopCh chan struct{}) {
	if err := c.awaitDetector(stopCh); err != nil {
		if errors.Is(err, errStopped) {
			return
		}
		c.fail(stopCh, Classify(err), failOpts{})
		return
	}

	if err := c.config.Camera.Open(); err != nil {
		c.fail(stopCh, Classify(err), failOpts{})
		return
	}

	c.mu.Lock()
	if c.stopCh != stopCh {
		c.mu.Unlock()
		// Stopped while acquiring; release what we just opened.
		if err := c.config.Camera.Close(); err != nil {
			log.Printf("close camera: %v", err)
		}
		return
	}
	// retryCount deliberately survives this transition; the budget refills
	// only once a frame completes the pipeline.
	c.state = StateRunning
	c.lastError = nil
	c.lastFrame = time.Now()
	fireReady := !c.readySent
	c.readySent = true
	onReady := c.config.Callbacks.OnReady
	c.mu.Unlock()

	log.Println("Session running")
	if fireReady && onReady != nil {
		c.deliverMu.Lock()
		c.mu.Lock()
		stale := c.stopCh != stopCh
		c.mu.Unlock()
		if !stale {
			onReady()
		}
		c.deliverMu.Unlock()
	}

	go c.healthLoop(stopCh)
	c.pipeline(stopCh)
}

// awaitDetector starts the detector and polls its readiness within the
// bounded window. Returns errStopped if the session is torn down while
// waiting.
func (c *Controller) awaitDetector(stopCh chan struct{}) error {
	d := c.config.Detector
	if d == nil {
		return fmt.Errorf("mediapipe detector is not configured")
	}
	if err := d.Start(); err != nil {
		return err
	}

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.config.PollAttempts; attempt++ {
		if d.Ready() {
			return nil
		}
		select {
		case <-stopCh:
			return errStopped
		case <-ticker.C:
		}
	}

	window := time.Duration(c.config.PollAttempts) * c.config.PollInterval
	return fmt.Errorf("mediapipe hand tracking failed to load within %v", window)
}

// healthLoop periodically compares now against the last processed frame and
// fails the session as crashed when the gap exceeds the stall timeout. The
// recovery it triggers is a single automatic retry after RecoveryDelay.
func (c *Controller) healthLoop(stopCh chan struct{}) {
	ticker := time.NewTicker(c.config.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			stale := c.stopCh != stopCh || c.state != StateRunning
			gap := time.Since(c.lastFrame)
			c.mu.Unlock()

			if stale {
				return
			}
			if gap > c.config.StallTimeout {
				err := fmt.Errorf("camera stream frozen: no frame for %v", gap.Round(time.Millisecond))
				c.fail(stopCh, Classify(err), failOpts{
					minDelay: c.config.RecoveryDelay,
					retryCap: 1,
				})
				return
			}
		}
	}
}

// failOpts tunes the recovery behavior for one failure. retryCap limits the
// automatic retries for this failure class below the global budget; minDelay
// raises the backoff floor.
type failOpts struct {
	minDelay time.Duration
	retryCap int
}

// fail transitions the session to ERROR, releases the camera so a retry can
// reacquire it, notifies the host, and schedules an automatic retry when the
// error and the budget allow one.
func (c *Controller) fail(stopCh chan struct{}, cls *ClassifiedError, opts failOpts) {
	c.mu.Lock()
	if c.stopCh != stopCh {
		c.mu.Unlock()
		return
	}
	close(stopCh)
	c.stopCh = nil
	c.state = StateError
	c.lastError = cls
	attempt := c.retryCount
	c.mu.Unlock()

	log.Printf("Session error (%s): %v", cls.Kind, cls.Err)

	if err := c.config.Camera.Close(); err != nil {
		log.Printf("release camera: %v", err)
	}

	if !cls.CanRetry {
		c.notifyError(cls)
		return
	}

	globalMax := c.config.MaxRetries
	limit := globalMax
	capped := opts.retryCap > 0 && opts.retryCap < globalMax
	if capped {
		limit = opts.retryCap
	}

	if attempt >= limit {
		// The global budget being spent is terminal; a capped failure class
		// merely stops retrying automatically and waits for the host.
		if attempt >= globalMax {
			cls = maxRetriesError(cls)
			c.mu.Lock()
			c.lastError = cls
			c.mu.Unlock()
		}
		c.notifyError(cls)
		return
	}

	c.notifyError(cls)

	delay := backoffDelay(attempt, c.config.BaseBackoff, c.config.MaxBackoff)
	if delay < opts.minDelay {
		delay = opts.minDelay
	}

	c.mu.Lock()
	if c.state != StateError {
		// Stopped or restarted while notifying the host.
		c.mu.Unlock()
		return
	}
	c.retryCount = attempt + 1
	c.retryTimer = time.AfterFunc(delay, c.retryFromError)
	c.mu.Unlock()
}

// notifyError invokes the host's error callback unless the session was
// stopped while the failure was being handled.
func (c *Controller) notifyError(cls *ClassifiedError) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	stopped := c.state == StateStopped
	cb := c.config.Callbacks.OnError
	c.mu.Unlock()

	if stopped || cb == nil {
		return
	}
	cb(cls)
}

// retryFromError re-enters LOADING if the session is still in ERROR.
func (c *Controller) retryFromError() {
	c.mu.Lock()
	if c.state != StateError {
		c.mu.Unlock()
		return
	}
	c.state = StateLoading
	c.retryTimer = nil
	ch := make(chan struct{})
	c.stopCh = ch
	c.mu.Unlock()

	log.Println("Retrying session")
	go c.run(ch)
}
