package model

import (
	"crypto/sha256"
	"fmt"
)

// DocumentOrigin identifies what kind of attachment a record came from.
type DocumentOrigin string

const (
	// OriginPDF marks documents extracted from PDF attachments.
	OriginPDF DocumentOrigin = "pdf"
	// OriginImage marks documents extracted from PNG/JPG attachments.
	OriginImage DocumentOrigin = "image"
	// OriginCSV marks rows imported from CSV attachments.
	OriginCSV DocumentOrigin = "csv"
)

// Document is one email attachment under consideration. It exists only in
// memory for the duration of a single pipeline pass.
type Document struct {
	MessageID string
	Filename  string
	Sender    string
	Subject   string
	Origin    DocumentOrigin
	Content   []byte
}

// Fingerprint returns the SHA-256 hash of the document content in hex.
func (d *Document) Fingerprint() string {
	sum := sha256.Sum256(d.Content)
	return fmt.Sprintf("%x", sum)
}

// Key builds the durable dedup key for this document.
func (d *Document) Key() DocumentKey {
	return DocumentKey{
		MessageID:   d.MessageID,
		Filename:    d.Filename,
		Fingerprint: d.Fingerprint(),
	}
}

// DocumentKey is the durable dedup record. No two accepted ingestions may
// share the same (MessageID, Filename) pair or the same Fingerprint.
type DocumentKey struct {
	MessageID   string
	Filename    string
	Fingerprint string
}

func (k DocumentKey) String() string {
	return fmt.Sprintf("%s/%s", k.MessageID, k.Filename)
}
