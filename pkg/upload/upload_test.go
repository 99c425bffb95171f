package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/records"
)

var jpegBytes = []byte{0xff, 0xd8, 0xff, 0xe0, 0x01, 0x02, 0xff, 0xd9}

func TestUpload(t *testing.T) {
	img := &annotate.Image{Data: jpegBytes, Width: 800, Height: 600}

	t.Run("success", func(t *testing.T) {
		repo := records.NewMock()
		c := NewCoordinator(repo, nil)

		rc, err := c.Upload(context.Background(), img, "", "001xx000003DGb2AAG")
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		if rc.RecordID != "mock-1" || rc.FileName != DefaultFileName || rc.Bytes != len(jpegBytes) {
			t.Errorf("Receipt = %+v", rc)
		}

		calls := repo.Calls()
		if len(calls) != 1 {
			t.Fatalf("Create called %d times, want 1", len(calls))
		}
		req := calls[0].Request
		if req.Title != "CapturedImage.png" || req.PathOnClient != "CapturedImage.png" {
			t.Errorf("title/path = %q/%q", req.Title, req.PathOnClient)
		}
		if req.FirstPublishLocationID != "001xx000003DGb2AAG" {
			t.Errorf("FirstPublishLocationID = %q", req.FirstPublishLocationID)
		}
		if req.VersionData != base64.StdEncoding.EncodeToString(jpegBytes) {
			t.Errorf("VersionData = %q, want bare base64", req.VersionData)
		}
	})

	t.Run("no image", func(t *testing.T) {
		for _, img := range []*annotate.Image{nil, {}} {
			repo := records.NewMock()
			c := NewCoordinator(repo, nil)
			if _, err := c.Upload(context.Background(), img, "x.png", "001"); !errors.Is(err, ErrNoImageCaptured) {
				t.Errorf("Upload() = %v, want ErrNoImageCaptured", err)
			}
			if n := repo.CallCount("Create"); n != 0 {
				t.Errorf("Create called %d times, want 0", n)
			}
		}
	})

	t.Run("api error message verbatim", func(t *testing.T) {
		repo := records.WithError(&records.APIError{StatusCode: 400, Code: "FIELD_INTEGRITY_EXCEPTION", Message: "Linked record is locked"})
		c := NewCoordinator(repo, nil)

		_, err := c.Upload(context.Background(), img, "", "001")
		var uerr *UploadError
		if !errors.As(err, &uerr) {
			t.Fatalf("error = %v, want *UploadError", err)
		}
		if uerr.Message != "Linked record is locked" {
			t.Errorf("Message = %q", uerr.Message)
		}
		if !errors.Is(err, ErrUploadFailed) {
			t.Error("errors.Is(err, ErrUploadFailed) = false")
		}
		var apiErr *records.APIError
		if !errors.As(err, &apiErr) {
			t.Error("APIError not reachable")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		c := NewCoordinator(records.WithError(errors.New("connection refused")), nil)
		_, err := c.Upload(context.Background(), img, "", "001")
		var uerr *UploadError
		if !errors.As(err, &uerr) || uerr.Message != "connection refused" {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("retry after failure reuses the same image", func(t *testing.T) {
		fail := true
		repo := &records.Mock{}
		repo.CreateFunc = func(ctx context.Context, req records.CreateRequest) (*records.Record, error) {
			if fail {
				fail = false
				return nil, errors.New("timeout")
			}
			return &records.Record{ID: "ok"}, nil
		}
		c := NewCoordinator(repo, nil)

		if _, err := c.Upload(context.Background(), img, "", "001"); err == nil {
			t.Fatal("first Upload() succeeded")
		}
		rc, err := c.Upload(context.Background(), img, "", "001")
		if err != nil || rc.RecordID != "ok" {
			t.Fatalf("second Upload() = %+v, %v", rc, err)
		}
		calls := repo.Calls()
		if calls[0].Request != calls[1].Request {
			t.Error("retry sent a different payload")
		}
	})
}

func TestRequestStripsDataURL(t *testing.T) {
	r := Request{ImageBytes: "data:image/jpeg;base64,QUJD", FileName: "a.png", LinkedRecordID: "1"}
	if got := r.CreateRequest().VersionData; got != "QUJD" {
		t.Errorf("VersionData = %q, want QUJD", got)
	}
}
