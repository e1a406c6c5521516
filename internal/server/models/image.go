package models

import "time"

// Image is the metadata record of one stored upload.
type Image struct {
	ID               int64     `json:"-"`
	UserID           int64     `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	StoredPath       string    `json:"stored_path"`
	UploadedAt       time.Time `json:"uploaded_at"`
}
