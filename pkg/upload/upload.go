// Package upload sends an annotated image to the persistence collaborator as
// an attachment linked to a business record.
package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/records"
)

// DefaultFileName is used when the caller gives none.
const DefaultFileName = "CapturedImage.png"

// Request is one upload: the encoded image and where it goes.
type Request struct {
	ImageBytes     string // data URL or bare base64
	FileName       string
	LinkedRecordID string
}

// CreateRequest converts r into the collaborator payload. Title and
// path-on-client are both the file name.
func (r Request) CreateRequest() records.CreateRequest {
	return records.CreateRequest{
		Title:                  r.FileName,
		PathOnClient:           r.FileName,
		VersionData:            annotate.StripDataURL(r.ImageBytes),
		FirstPublishLocationID: r.LinkedRecordID,
	}
}

// Receipt describes a completed upload.
type Receipt struct {
	RecordID       string    `json:"record_id"`
	FileName       string    `json:"file_name"`
	LinkedRecordID string    `json:"linked_record_id"`
	Bytes          int       `json:"bytes"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

// Coordinator performs uploads. It does not retry.
type Coordinator struct {
	repo   records.Repository
	logger *slog.Logger
}

// NewCoordinator returns a coordinator writing to repo.
func NewCoordinator(repo records.Repository, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{repo: repo, logger: logger.With("component", "upload")}
}

// Upload sends img. A nil or empty image fails with ErrNoImageCaptured before
// anything else happens; collaborator failures come back as *UploadError.
func (c *Coordinator) Upload(ctx context.Context, img *annotate.Image, fileName, linkedRecordID string) (*Receipt, error) {
	if img == nil || len(img.Data) == 0 {
		return nil, ErrNoImageCaptured
	}
	if fileName == "" {
		fileName = DefaultFileName
	}

	req := Request{
		ImageBytes:     img.DataURL(),
		FileName:       fileName,
		LinkedRecordID: linkedRecordID,
	}

	start := time.Now()
	rec, err := c.repo.Create(ctx, req.CreateRequest())
	if err != nil {
		uerr := &UploadError{Message: collaboratorMessage(err), Err: err}
		c.logger.Warn("upload failed", "file", fileName, "linked_record_id", linkedRecordID, "error", err)
		return nil, uerr
	}

	c.logger.Info("upload complete",
		"record_id", rec.ID,
		"file", fileName,
		"linked_record_id", linkedRecordID,
		"bytes", len(img.Data),
		"elapsed", time.Since(start))

	return &Receipt{
		RecordID:       rec.ID,
		FileName:       fileName,
		LinkedRecordID: linkedRecordID,
		Bytes:          len(img.Data),
		UploadedAt:     time.Now().UTC(),
	}, nil
}

func collaboratorMessage(err error) string {
	var apiErr *records.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
