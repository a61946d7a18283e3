package model

import "time"

// IngestFailure tracks repeated processing failures for one document so the
// pipeline can stop spending quota on it after a bounded number of cycles.
type IngestFailure struct {
	MessageID     string
	Filename      string
	Attempts      int
	LastError     string
	Diagnostic    string
	Permanent     bool
	LastAttemptAt time.Time
}
