package feature

import "fmt"

// Recorder accumulates feature records for one labeled sign and averages them
// into a single representative sample. Averaging several consecutive frames
// smooths per-frame landmark jitter before the sample is persisted to the
// training dataset.
type Recorder struct {
	label   string
	need    int
	records []Record
}

// NewRecorder creates a Recorder that collects n records for the given label.
func NewRecorder(label string, n int) *Recorder {
	if n < 1 {
		n = 1
	}
	return &Recorder{
		label:   label,
		need:    n,
		records: make([]Record, 0, n),
	}
}

// Label returns the sign label being recorded.
func (r *Recorder) Label() string {
	return r.label
}

// Add appends a validated record and reports whether the recorder has
// collected enough samples. Invalid records are ignored.
func (r *Recorder) Add(rec Record) bool {
	if len(r.records) >= r.need {
		return true
	}
	if !Validate(rec) {
		return len(r.records) >= r.need
	}
	r.records = append(r.records, rec)
	return len(r.records) >= r.need
}

// Average returns the field-wise mean of the collected records.
func (r *Recorder) Average() (Record, error) {
	if len(r.records) == 0 {
		return nil, fmt.Errorf("no samples recorded for %q", r.label)
	}

	avg := make(Record, NumFields)
	n := float64(len(r.records))

	for _, name := range fieldNames {
		var sum float64
		for _, rec := range r.records {
			sum += rec[name]
		}
		avg[name] = sum / n
	}

	// both_hands is an indicator, not an angle; round it back to 0 or 1
	if avg[FieldBothHands] >= 0.5 {
		avg[FieldBothHands] = 1
	} else {
		avg[FieldBothHands] = 0
	}

	return avg, nil
}
