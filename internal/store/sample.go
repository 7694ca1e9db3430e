package store

import (
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/feature"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// sampleColumns maps feature field names onto table columns, in dataset
// column order.
var sampleColumns = []struct {
	field  string
	column string
}{
	{feature.FieldBothHands, "both_hands"},
	{feature.FieldThumbLeft, "thumb_left"},
	{feature.FieldIndexLeft, "index_finger_left"},
	{feature.FieldMiddleLeft, "middle_finger_left"},
	{feature.FieldRingLeft, "ring_finger_left"},
	{feature.FieldPinkyLeft, "pinky_left"},
	{feature.FieldPalmLeftLeft, "palm_angle_left_left"},
	{feature.FieldPalmLeftRight, "palm_angle_left_right"},
	{feature.FieldGroundLeft, "hand_left_ground_angle"},
	{feature.FieldThumbRight, "thumb_right"},
	{feature.FieldIndexRight, "index_finger_right"},
	{feature.FieldMiddleRight, "middle_finger_right"},
	{feature.FieldRingRight, "ring_finger_right"},
	{feature.FieldPinkyRight, "pinky_right"},
	{feature.FieldPalmRightLeft, "palm_angle_right_left"},
	{feature.FieldPalmRightRight, "palm_angle_right_right"},
	{feature.FieldGroundRight, "hand_right_ground_angle"},
}

// Sample is one recorded, labeled feature record.
type Sample struct {
	ID        string
	Label     string
	Features  feature.Record
	CreatedAt time.Time
}

// SampleRepository provides persistence for recorded samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

// Create inserts a new labeled sample and returns it with its generated ID.
func (r *SampleRepository) Create(label string, rec feature.Record) (*Sample, error) {
	if label == "" {
		return nil, fmt.Errorf("sample label must not be empty")
	}
	if !feature.Validate(rec) {
		return nil, fmt.Errorf("sample features are incomplete")
	}

	sample := &Sample{
		ID:        uuid.NewString(),
		Label:     label,
		Features:  rec,
		CreatedAt: time.Now(),
	}

	query := `INSERT INTO samples (id, label`
	placeholders := `?, ?`
	args := []any{sample.ID, sample.Label}
	for _, col := range sampleColumns {
		query += ", " + col.column
		placeholders += ", ?"
		args = append(args, rec[col.field])
	}
	query += ", created_at) VALUES (" + placeholders + ", ?)"
	args = append(args, sample.CreatedAt)

	if _, err := r.db.Exec(query, args...); err != nil {
		return nil, err
	}

	return sample, nil
}

// GetByID retrieves a sample by its ID.
func (r *SampleRepository) GetByID(id string) (*Sample, error) {
	row := r.db.QueryRow(selectQuery()+` WHERE id = ?`, id)

	sample, err := scanSample(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sample, nil
}

// List returns all samples, newest first.
func (r *SampleRepository) List() ([]*Sample, error) {
	rows, err := r.db.Query(selectQuery() + ` ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}

// CountByLabel returns the number of stored samples per label.
func (r *SampleRepository) CountByLabel() (map[string]int, error) {
	rows, err := r.db.Query(`SELECT label, COUNT(*) FROM samples GROUP BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		counts[label] = count
	}

	return counts, rows.Err()
}

// Delete removes a sample by ID.
func (r *SampleRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ExportCSV writes all samples in the training dataset format: a label
// column followed by the 17 feature columns.
func (r *SampleRepository) ExportCSV(w io.Writer) error {
	samples, err := r.List()
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)

	header := append([]string{"label"}, feature.FieldNames()...)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		row := make([]string, 0, len(header))
		row = append(row, sample.Label)
		for _, name := range feature.FieldNames() {
			row = append(row, strconv.FormatFloat(sample.Features[name], 'f', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func selectQuery() string {
	q := `SELECT id, label`
	for _, col := range sampleColumns {
		q += ", " + col.column
	}
	return q + `, created_at FROM samples`
}

func scanSample(row rowScanner) (*Sample, error) {
	sample := &Sample{Features: make(feature.Record, feature.NumFields)}

	dest := make([]any, 0, len(sampleColumns)+3)
	dest = append(dest, &sample.ID, &sample.Label)
	values := make([]float64, len(sampleColumns))
	for i := range sampleColumns {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &sample.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, col := range sampleColumns {
		sample.Features[col.field] = values[i]
	}

	return sample, nil
}
