package session

import "strings"

// Kind identifies one category in the closed error taxonomy.
type Kind string

const (
	KindPermissionDenied Kind = "permission_denied"
	KindNoCamera         Kind = "no_camera"
	KindMediaPipeFailed  Kind = "mediapipe_failed"
	KindUnsupported      Kind = "unsupported"
	KindCameraCrashed    Kind = "camera_crashed"
	KindDetectionFailed  Kind = "detection_failed"
	KindNetworkError     Kind = "network_error"
	KindUnknown          Kind = "unknown"
)

// ClassifiedError is the normalized descriptor delivered to the host for
// every failure. Hosts never see raw platform errors; Err is retained for
// diagnostic display only and must not drive control flow.
type ClassifiedError struct {
	Kind     Kind
	Title    string
	Icon     string
	Steps    []string
	CanRetry bool
	Terminal bool // set when automatic retries are exhausted
	Err      error
}

func (e *ClassifiedError) Error() string {
	if e.Err != nil {
		return e.Title + ": " + e.Err.Error()
	}
	return e.Title
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

type descriptor struct {
	title    string
	icon     string
	steps    []string
	canRetry bool
}

// descriptors is the fixed, host-displayable text for each category.
// KindUnsupported is the only category without a programmatic fix.
var descriptors = map[Kind]descriptor{
	KindPermissionDenied: {
		title: "Camera access denied",
		icon:  "🔒",
		steps: []string{
			"Allow camera access for this application in your system settings",
			"Close other applications that may have reserved the camera",
			"Retry the session",
		},
		canRetry: true,
	},
	KindNoCamera: {
		title: "No camera detected",
		icon:  "📷",
		steps: []string{
			"Connect a camera and check its cable",
			"Verify the camera works in another application",
			"Retry the session",
		},
		canRetry: true,
	},
	KindMediaPipeFailed: {
		title: "Hand tracking failed to load",
		icon:  "✋",
		steps: []string{
			"Verify the hand tracking service is installed",
			"Check the service log for model download errors",
			"Retry the session",
		},
		canRetry: true,
	},
	KindUnsupported: {
		title: "Camera capture is not supported here",
		icon:  "🚫",
		steps: []string{
			"Run the application on a machine with a supported camera stack",
		},
		canRetry: false,
	},
	KindCameraCrashed: {
		title: "Camera stream stopped",
		icon:  "💥",
		steps: []string{
			"Check that the camera is still connected",
			"Close other applications using the camera",
			"Retry the session",
		},
		canRetry: true,
	},
	KindDetectionFailed: {
		title: "Hand detection failed",
		icon:  "✋",
		steps: []string{
			"Improve lighting and keep your hand inside the frame",
			"Retry the session",
		},
		canRetry: true,
	},
	KindNetworkError: {
		title: "Cannot reach the recognition service",
		icon:  "🌐",
		steps: []string{
			"Check your network connection",
			"Verify the recognition service is running",
			"Retry the session",
		},
		canRetry: true,
	},
	KindUnknown: {
		title: "Something went wrong",
		icon:  "❓",
		steps: []string{
			"Retry the session",
			"Restart the application if the problem persists",
		},
		canRetry: true,
	},
}

// kindMatchers pairs each category with the substrings that select it.
// Matching runs in this order; the first hit wins.
var kindMatchers = []struct {
	kind  Kind
	terms []string
}{
	{KindPermissionDenied, []string{"permission", "denied", "not allowed", "notallowederror"}},
	{KindNoCamera, []string{"no camera", "notfounderror", "not found", "no such device"}},
	{KindMediaPipeFailed, []string{"mediapipe", "hand tracking", "landmark model"}},
	{KindUnsupported, []string{"unsupported", "getusermedia", "not implemented"}},
	{KindCameraCrashed, []string{"crashed", "stopped", "aborted", "frozen", "already in use", "device busy"}},
	{KindNetworkError, []string{"network", "connection refused", "timeout", "deadline exceeded", "no such host", "fetch", "cdn", "eof"}},
}

// Classify maps a raw error onto the closed taxonomy by matching its message
// against known terms in priority order. It is a pure function: the same
// message always yields the same category. A nil error classifies as Unknown.
func Classify(err error) *ClassifiedError {
	if err == nil {
		return newClassified(KindUnknown, nil)
	}

	msg := strings.ToLower(err.Error())
	for _, m := range kindMatchers {
		for _, term := range m.terms {
			if strings.Contains(msg, term) {
				return newClassified(m.kind, err)
			}
		}
	}

	return newClassified(KindUnknown, err)
}

// classifyDetection classifies an error raised by the detection stage.
// Specific matches keep their category; anything unrecognized becomes
// DetectionFailed rather than Unknown, since the stage is known.
func classifyDetection(err error) *ClassifiedError {
	cls := Classify(err)
	if cls.Kind == KindUnknown {
		return newClassified(KindDetectionFailed, err)
	}
	return cls
}

func newClassified(kind Kind, err error) *ClassifiedError {
	d := descriptors[kind]
	steps := make([]string, len(d.steps))
	copy(steps, d.steps)
	return &ClassifiedError{
		Kind:     kind,
		Title:    d.title,
		Icon:     d.icon,
		Steps:    steps,
		CanRetry: d.canRetry,
		Err:      err,
	}
}

// maxRetriesError wraps the last failure in a terminal descriptor once the
// automatic retry budget is spent. The host must start a fresh session.
func maxRetriesError(last *ClassifiedError) *ClassifiedError {
	return &ClassifiedError{
		Kind:  last.Kind,
		Title: "Maximum retries reached: " + last.Title,
		Icon:  last.Icon,
		Steps: []string{
			"Automatic recovery has stopped",
			"Fix the underlying problem and start a new session",
		},
		CanRetry: false,
		Terminal: true,
		Err:      last.Err,
	}
}
