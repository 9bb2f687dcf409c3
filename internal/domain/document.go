package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents the processing state of an uploaded document
type DocumentStatus string

const (
	// DocumentStatusUploaded means the raw file is stored but not yet chunked.
	// A document in this state (chunk count 0) is invisible to search.
	DocumentStatusUploaded DocumentStatus = "uploaded"
	// DocumentStatusProcessing means the ingest pipeline is running
	DocumentStatusProcessing DocumentStatus = "processing"
	// DocumentStatusReady means chunks and vectors exist and are searchable
	DocumentStatusReady DocumentStatus = "ready"
	// DocumentStatusFailed means extraction or embedding failed; the raw file
	// is kept and the document can be reprocessed
	DocumentStatusFailed DocumentStatus = "failed"
)

// FileType identifies the declared format of an uploaded file
type FileType string

const (
	FileTypePDF  FileType = "pdf"
	FileTypeDOCX FileType = "docx"
	FileTypeTXT  FileType = "txt"
)

// Document represents an uploaded knowledge artifact owned by one agent
// within one organization. Deleting a document cascades to its chunks and
// their vectors.
type Document struct {
	ID              string
	OrgID           string
	AgentID         string
	KnowledgeBaseID string
	Title           string
	FileKey         string
	FileType        FileType
	Status          DocumentStatus
	ChunkCount      int
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.OrgID == "" {
		return fmt.Errorf("document OrgID is required")
	}
	if d.AgentID == "" {
		return fmt.Errorf("document AgentID is required")
	}
	if d.KnowledgeBaseID == "" {
		return fmt.Errorf("document KnowledgeBaseID is required")
	}
	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}
	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}
	if d.ChunkCount < 0 {
		return fmt.Errorf("document ChunkCount cannot be negative")
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusUploaded, DocumentStatusProcessing,
		DocumentStatusReady, DocumentStatusFailed:
		return true
	}
	return false
}

// IsValidFileType checks whether the declared file type is supported
func IsValidFileType(t FileType) bool {
	switch t {
	case FileTypePDF, FileTypeDOCX, FileTypeTXT:
		return true
	}
	return false
}
