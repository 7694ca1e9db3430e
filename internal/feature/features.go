package feature

import (
	"math"

	"github.com/ayusman/mudra/internal/detector"
)

// Feature field names. The names and their order are fixed by the trained
// model's metadata; changing them breaks every deployed model.
const (
	FieldBothHands = "both_hands"

	FieldThumbLeft      = "thumb_Left"
	FieldIndexLeft      = "index_finger_Left"
	FieldMiddleLeft     = "middle_finger_Left"
	FieldRingLeft       = "ring_finger_Left"
	FieldPinkyLeft      = "pinky_Left"
	FieldPalmLeftLeft   = "palm_angle_Left_left"
	FieldPalmLeftRight  = "palm_angle_Left_right"
	FieldGroundLeft     = "hand_Left_ground_angle"
	FieldThumbRight     = "thumb_Right"
	FieldIndexRight     = "index_finger_Right"
	FieldMiddleRight    = "middle_finger_Right"
	FieldRingRight      = "ring_finger_Right"
	FieldPinkyRight     = "pinky_Right"
	FieldPalmRightLeft  = "palm_angle_Right_left"
	FieldPalmRightRight = "palm_angle_Right_right"
	FieldGroundRight    = "hand_Right_ground_angle"
)

// NumFields is the size of a complete feature record.
const NumFields = 17

// fieldNames lists every field in dataset column order.
var fieldNames = []string{
	FieldBothHands,
	FieldThumbLeft, FieldIndexLeft, FieldMiddleLeft, FieldRingLeft, FieldPinkyLeft,
	FieldPalmLeftLeft, FieldPalmLeftRight, FieldGroundLeft,
	FieldThumbRight, FieldIndexRight, FieldMiddleRight, FieldRingRight, FieldPinkyRight,
	FieldPalmRightLeft, FieldPalmRightRight, FieldGroundRight,
}

// FieldNames returns the feature field names in dataset column order.
func FieldNames() []string {
	names := make([]string, len(fieldNames))
	copy(names, fieldNames)
	return names
}

// Record is a complete feature vector keyed by field name. A Record produced
// by Extract always carries exactly the 17 declared fields.
type Record map[string]float64

// Extract builds a feature record from per-hand landmark sets. Either set may
// be nil or undersized, in which case all fields for that hand are 0. The
// both_hands indicator is 1 only when both sets carry all 21 landmarks.
// Extract never panics regardless of input.
func Extract(left, right []detector.Point3D) Record {
	rec := make(Record, NumFields)

	leftOK := len(left) >= detector.NumLandmarks
	rightOK := len(right) >= detector.NumLandmarks

	if leftOK && rightOK {
		rec[FieldBothHands] = 1
	} else {
		rec[FieldBothHands] = 0
	}

	extractHand(rec, left, leftOK, handFields{
		thumb: FieldThumbLeft, index: FieldIndexLeft, middle: FieldMiddleLeft,
		ring: FieldRingLeft, pinky: FieldPinkyLeft,
		palmLeft: FieldPalmLeftLeft, palmRight: FieldPalmLeftRight,
		ground: FieldGroundLeft,
	})
	extractHand(rec, right, rightOK, handFields{
		thumb: FieldThumbRight, index: FieldIndexRight, middle: FieldMiddleRight,
		ring: FieldRingRight, pinky: FieldPinkyRight,
		palmLeft: FieldPalmRightLeft, palmRight: FieldPalmRightRight,
		ground: FieldGroundRight,
	})

	return rec
}

type handFields struct {
	thumb, index, middle, ring, pinky string
	palmLeft, palmRight               string
	ground                            string
}

func extractHand(rec Record, points []detector.Point3D, ok bool, f handFields) {
	if !ok {
		rec[f.thumb] = 0
		rec[f.index] = 0
		rec[f.middle] = 0
		rec[f.ring] = 0
		rec[f.pinky] = 0
		rec[f.palmLeft] = 0
		rec[f.palmRight] = 0
		rec[f.ground] = 0
		return
	}

	rec[f.thumb] = FingerAngle(points, ThumbChain)
	rec[f.index] = FingerAngle(points, IndexChain)
	rec[f.middle] = FingerAngle(points, MiddleChain)
	rec[f.ring] = FingerAngle(points, RingChain)
	rec[f.pinky] = FingerAngle(points, PinkyChain)

	palmL, palmR := PalmAngles(points)
	rec[f.palmLeft] = palmL
	rec[f.palmRight] = palmR
	rec[f.ground] = GroundAngle(points)
}

// Validate reports whether rec is schema-complete: exactly the declared
// fields, every value finite. Records failing validation must not be sent to
// the classifier.
func Validate(rec Record) bool {
	if len(rec) != NumFields {
		return false
	}
	for _, name := range fieldNames {
		v, ok := rec[name]
		if !ok {
			return false
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
