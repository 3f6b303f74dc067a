package store

import "database/sql"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// GetImportedFileHash returns the recorded content hash for a loaded
// questionnaire definition file, empty when never loaded.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	return s.GetMetadata("loaded:" + path)
}

// SetImportedFileHash records the content hash of a loaded questionnaire
// definition file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	return s.SetMetadata("loaded:"+path, hash)
}
