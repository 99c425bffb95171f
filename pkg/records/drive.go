package records

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Drive app property keys set on every uploaded file.
const (
	PropLinkedRecordID = "linkedRecordId"
	PropPathOnClient   = "pathOnClient"
)

// DriveConfig configures the OAuth flow and the target folder.
type DriveConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "http://localhost:8080/api/drive/callback"
	TokenPath    string // default: ~/.geostamp/google_token.json
	FolderID     string // parent folder; empty means My Drive root
	Logger       *slog.Logger
}

// DriveStore uploads attachments to Google Drive.
type DriveStore struct {
	oauth     *oauth2.Config
	tokenPath string
	folderID  string
	logger    *slog.Logger

	mu      sync.RWMutex
	token   *oauth2.Token
	service *drive.Service
}

// NewDriveStore builds the OAuth config and loads a saved token if present.
// Without one, Create fails with ErrNotAuthenticated until HandleCallback
// succeeds.
func NewDriveStore(cfg DriveConfig) (*DriveStore, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("records: drive client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = "http://localhost:8080/api/drive/callback"
	}
	if cfg.TokenPath == "" {
		homeDir, _ := os.UserHomeDir()
		cfg.TokenPath = filepath.Join(homeDir, ".geostamp", "google_token.json")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &DriveStore{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{drive.DriveFileScope},
			Endpoint:     google.Endpoint,
		},
		tokenPath: cfg.TokenPath,
		folderID:  cfg.FolderID,
		logger:    logger.With("component", "records.drive"),
	}

	if err := s.loadToken(); err == nil {
		if err := s.initService(context.Background()); err != nil {
			s.logger.Warn("saved token unusable, re-auth required", "error", err)
			s.token = nil
		}
	}
	return s, nil
}

// NewDriveStoreWithService uses an already authenticated service.
func NewDriveStoreWithService(svc *drive.Service, folderID string, logger *slog.Logger) *DriveStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriveStore{
		service:  svc,
		folderID: folderID,
		logger:   logger.With("component", "records.drive"),
	}
}

// IsAuthenticated reports whether uploads can be attempted.
func (s *DriveStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.service != nil
}

// AuthURL returns the consent URL.
func (s *DriveStore) AuthURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// HandleCallback exchanges the authorization code and saves the token.
func (s *DriveStore) HandleCallback(ctx context.Context, code string) error {
	if s.oauth == nil {
		return errors.New("records: drive store has no oauth config")
	}
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("records: exchange code: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if err := s.saveToken(); err != nil {
		s.logger.Warn("failed to save token", "error", err)
	}
	return s.initService(context.Background())
}

// Create uploads the decoded payload as a file in the configured folder.
func (s *DriveStore) Create(ctx context.Context, req CreateRequest) (*Record, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	svc := s.service
	s.mu.RUnlock()
	if svc == nil {
		return nil, ErrNotAuthenticated
	}

	data, _ := req.Decode()
	file := &drive.File{
		Name:     req.Title,
		MimeType: "image/jpeg",
		AppProperties: map[string]string{
			PropLinkedRecordID: req.FirstPublishLocationID,
			PropPathOnClient:   req.PathOnClient,
		},
	}
	if s.folderID != "" {
		file.Parents = []string{s.folderID}
	}

	created, err := svc.Files.Create(file).
		Media(bytes.NewReader(data), googleapi.ContentType("image/jpeg")).
		Fields("id", "name", "size", "createdTime").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			return nil, &APIError{StatusCode: gerr.Code, Code: firstReason(gerr), Message: gerr.Message, Err: err}
		}
		return nil, fmt.Errorf("records: drive create: %w", err)
	}

	rec := &Record{
		ID:             created.Id,
		Title:          req.Title,
		PathOnClient:   req.PathOnClient,
		LinkedRecordID: req.FirstPublishLocationID,
		Size:           int64(len(data)),
		CreatedAt:      time.Now().UTC(),
	}
	if created.Size > 0 {
		rec.Size = created.Size
	}
	if t, err := time.Parse(time.RFC3339, created.CreatedTime); err == nil {
		rec.CreatedAt = t.UTC()
	}
	s.logger.Info("file created", "id", rec.ID, "linked_record_id", rec.LinkedRecordID, "bytes", rec.Size)
	return rec, nil
}

func firstReason(e *googleapi.Error) string {
	if len(e.Errors) > 0 {
		return e.Errors[0].Reason
	}
	return ""
}

func (s *DriveStore) initService(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return errors.New("no token available")
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(s.oauth.Client(ctx, s.token)))
	if err != nil {
		return fmt.Errorf("create drive service: %w", err)
	}
	s.service = svc
	return nil
}

func (s *DriveStore) loadToken() error {
	data, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return err
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	s.mu.Lock()
	s.token = &token
	s.mu.Unlock()
	return nil
}

func (s *DriveStore) saveToken() error {
	s.mu.RLock()
	token := s.token
	s.mu.RUnlock()
	if token == nil {
		return errors.New("no token to save")
	}
	if err := os.MkdirAll(filepath.Dir(s.tokenPath), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.tokenPath, data, 0o600)
}

var _ Repository = (*DriveStore)(nil)
