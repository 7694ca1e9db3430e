package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Samples table - one averaged feature record per recorded sign
		// sample, column names matching the training dataset CSV
		`CREATE TABLE IF NOT EXISTS samples (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			both_hands REAL NOT NULL DEFAULT 0,
			thumb_left REAL NOT NULL DEFAULT 0,
			index_finger_left REAL NOT NULL DEFAULT 0,
			middle_finger_left REAL NOT NULL DEFAULT 0,
			ring_finger_left REAL NOT NULL DEFAULT 0,
			pinky_left REAL NOT NULL DEFAULT 0,
			palm_angle_left_left REAL NOT NULL DEFAULT 0,
			palm_angle_left_right REAL NOT NULL DEFAULT 0,
			hand_left_ground_angle REAL NOT NULL DEFAULT 0,
			thumb_right REAL NOT NULL DEFAULT 0,
			index_finger_right REAL NOT NULL DEFAULT 0,
			middle_finger_right REAL NOT NULL DEFAULT 0,
			ring_finger_right REAL NOT NULL DEFAULT 0,
			pinky_right REAL NOT NULL DEFAULT 0,
			palm_angle_right_left REAL NOT NULL DEFAULT 0,
			palm_angle_right_right REAL NOT NULL DEFAULT 0,
			hand_right_ground_angle REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
