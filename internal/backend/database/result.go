package database

import "time"

// Result is one persisted background removal result
type Result struct {
	ID           string    `db:"id"`
	Filename     string    `db:"filename"`      // name of the PNG inside the result directory
	OriginalName string    `db:"original_name"` // sanitized name of the uploaded file
	SizeBytes    int64     `db:"size_bytes"`
	CreatedAt    time.Time `db:"created_at"`
}
