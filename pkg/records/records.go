// Package records persists annotated photographs as attachments linked to a
// business record.
//
// Repository is the only thing the upload path needs. SQLiteStore keeps
// attachments in a local database, DriveStore puts them in a Google Drive
// folder and HTTPStore posts them to a REST endpoint.
package records

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// CreateRequest is the attachment-create payload.
type CreateRequest struct {
	Title                  string `json:"Title"`
	PathOnClient           string `json:"PathOnClient"`
	VersionData            string `json:"VersionData"` // base64, no data-URL prefix
	FirstPublishLocationID string `json:"FirstPublishLocationId"`
}

// Validate checks that every field is present and VersionData is base64.
func (r CreateRequest) Validate() error {
	var missing []string
	if r.Title == "" {
		missing = append(missing, "Title")
	}
	if r.PathOnClient == "" {
		missing = append(missing, "PathOnClient")
	}
	if r.VersionData == "" {
		missing = append(missing, "VersionData")
	}
	if r.FirstPublishLocationID == "" {
		missing = append(missing, "FirstPublishLocationId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	if _, err := r.Decode(); err != nil {
		return fmt.Errorf("%w: VersionData: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Decode returns the binary payload.
func (r CreateRequest) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(r.VersionData)
}

// Record is a stored attachment.
type Record struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	PathOnClient   string    `json:"path_on_client"`
	LinkedRecordID string    `json:"linked_record_id"`
	Size           int64     `json:"size"`
	CreatedAt      time.Time `json:"created_at"`
}

// Repository creates attachment records.
type Repository interface {
	Create(ctx context.Context, req CreateRequest) (*Record, error)
}
