package models

import "time"

// Artifact describes a finalized output file (a saved recording or a
// screenshot) held by the storage backend.
type Artifact struct {
	Name      string    `json:"name"` // storage path, relative to the backend root
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
