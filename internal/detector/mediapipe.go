package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MediaPipeDetector implements Detector using a Python MediaPipe subprocess.
// Frames are sent as length-prefixed JPEGs on stdin; landmark sets come back
// as JSON lines on stdout. The service announces itself with a single
// {"status":"ready"} line once the hand landmark model is loaded.
type MediaPipeDetector struct {
	config  Config
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	mu      sync.Mutex
	started bool
	ready   bool

	// ioMu serializes frame writes and response reads on the service pipes.
	// It is never held together with mu, so Close can always tear down a
	// wedged service.
	ioMu sync.Mutex
}

// NewMediaPipeDetector creates a new MediaPipe detector. It fails only if the
// service script cannot be located; the Python process itself is launched by
// Start.
func NewMediaPipeDetector(config Config) (*MediaPipeDetector, error) {
	if findServiceScript() == "" {
		return nil, fmt.Errorf("mediapipe hand tracking service script not found")
	}

	return &MediaPipeDetector{
		config: config,
	}, nil
}

// Start launches the Python service and waits for its ready handshake in the
// background. Safe to call more than once.
func (d *MediaPipeDetector) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}
	if err := d.launch(); err != nil {
		return fmt.Errorf("mediapipe failed to start: %w", err)
	}

	go d.awaitHandshake()
	return nil
}

// Ready reports whether the service has completed its model-load handshake.
func (d *MediaPipeDetector) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// Detect analyzes a frame and returns detected hand landmarks.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	d.mu.Lock()
	if !d.started || !d.ready {
		d.mu.Unlock()
		return nil, fmt.Errorf("mediapipe service is not ready")
	}
	stdin := d.stdin
	stdout := d.stdout
	d.mu.Unlock()

	// Encode frame as JPEG
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	// Pipe I/O happens outside the state lock; killing a wedged process from
	// Close fails the read here instead of blocking teardown behind it.
	d.ioMu.Lock()
	defer d.ioMu.Unlock()

	if _, err := stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	// Read JSON response
	line, err := stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Hands []jsonHand `json:"hands"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	result := make([]HandLandmarks, len(response.Hands))
	for i, h := range response.Hands {
		result[i] = h.toHandLandmarks()
	}

	return result, nil
}

// Close shuts down the Python process. It never waits behind an in-flight
// Detect: a service that stops responding is killed, which unblocks the
// pending pipe read with an error.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	cmd := d.cmd
	stdin := d.stdin
	d.started = false
	d.ready = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	d.mu.Unlock()

	if stdin != nil {
		stdin.Close()
	}

	var err error
	if cmd != nil {
		// Give the process a moment to exit after stdin closes
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()
		select {
		case err = <-done:
		case <-time.After(2 * time.Second):
			cmd.Process.Kill()
			err = <-done
		}
	}

	return err
}

func (d *MediaPipeDetector) launch() error {
	scriptPath := findServiceScript()
	if scriptPath == "" {
		return fmt.Errorf("hand_tracking_service.py not found")
	}

	// Use virtual environment Python if available
	pythonPath := findVenvPython()
	if pythonPath == "" {
		pythonPath = "python3"
	}

	cmd := exec.Command(pythonPath, scriptPath,
		fmt.Sprintf("--max-hands=%d", d.config.MaxHands),
		fmt.Sprintf("--min-confidence=%f", d.config.MinConfidence),
		fmt.Sprintf("--min-tracking-confidence=%f", d.config.MinTrackingConf),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start hand tracking service: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.ready = false

	return nil
}

// awaitHandshake blocks on the service's first output line. Model loading can
// take several seconds; callers observe completion through Ready.
func (d *MediaPipeDetector) awaitHandshake() {
	d.mu.Lock()
	stdout := d.stdout
	d.mu.Unlock()
	if stdout == nil {
		return
	}

	line, err := stdout.ReadString('\n')
	if err != nil {
		return
	}

	var hello struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(line), &hello); err != nil || hello.Status != "ready" {
		return
	}

	d.mu.Lock()
	if d.started {
		d.ready = true
	}
	d.mu.Unlock()
}

func findServiceScript() string {
	// Get executable directory
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		"scripts/hand_tracking_service.py",
		"../scripts/hand_tracking_service.py",
		filepath.Join(execDir, "scripts/hand_tracking_service.py"),
		filepath.Join(os.Getenv("HOME"), ".mudra/scripts/hand_tracking_service.py"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mudra/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonHand represents the JSON structure from the Python service.
type jsonHand struct {
	Points     []jsonPoint `json:"points"`
	Handedness string      `json:"handedness"`
	Score      float64     `json:"score"`
}

type jsonPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (h jsonHand) toHandLandmarks() HandLandmarks {
	lm := HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	for i := 0; i < NumLandmarks && i < len(h.Points); i++ {
		lm.Points[i] = Point3D{
			X: h.Points[i].X,
			Y: h.Points[i].Y,
			Z: h.Points[i].Z,
		}
	}

	return lm
}
