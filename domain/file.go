package domain

import "time"

// UploadedFile is an externally stored file referenced by file
// messages. The core only checks its existence and ships its
// serialized form inside delivery events.
type UploadedFile struct {
	ID          string
	Name        string
	Size        int64
	ContentType string
	UploadedBy  string // user PK
	URL         string
	CreatedAt   time.Time
}

// Serialize returns the wire representation embedded in file delivery
// events.
func (f UploadedFile) Serialize() map[string]any {
	return map[string]any{
		"id":       f.ID,
		"name":     f.Name,
		"size":     f.Size,
		"type":     f.ContentType,
		"url":      f.URL,
		"uploader": f.UploadedBy,
	}
}
