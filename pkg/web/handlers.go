package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-geostamp/pkg/annotate"
	"github.com/teslashibe/go-geostamp/pkg/geo"
	"github.com/teslashibe/go-geostamp/pkg/workflow"
)

// SessionView is the JSON shape of the live session.
type SessionView struct {
	ID              string             `json:"id"`
	State           workflow.State     `json:"state"`
	CaptureEnabled  bool               `json:"capture_enabled"`
	LocationPending bool               `json:"location_pending"`
	Fix             *geo.Fix           `json:"fix,omitempty"`
	Annotated       *annotate.Image    `json:"annotated,omitempty"`
	Bytes           int                `json:"bytes,omitempty"`
	Error           string             `json:"error,omitempty"`
	ErrorKind       workflow.ErrorKind `json:"error_kind,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

func (s *Server) view(sess workflow.Session) SessionView {
	v := SessionView{
		ID:              sess.ID,
		State:           sess.State,
		CaptureEnabled:  s.wf.CaptureEnabled(),
		LocationPending: s.wf.LocationPending(),
		Annotated:       sess.Annotated,
		Bytes:           sess.Annotated.Len(),
		Error:           sess.LastError,
		ErrorKind:       sess.Kind,
		UpdatedAt:       sess.UpdatedAt,
	}
	if f, ok := s.wf.LastFix(); ok {
		v.Fix = &f
	}
	return v
}

// broadcastSession pushes the session to notification subscribers.
func (s *Server) broadcastSession(v SessionView) {
	_ = s.cfg.Notifications.BroadcastJSON(fiber.Map{"type": "session", "session": v})
}

// statusFor maps an error kind onto an HTTP status.
func statusFor(kind workflow.ErrorKind) int {
	switch kind {
	case workflow.KindCaptureDisabled, workflow.KindLocationUnavailable, workflow.KindCaptureUnavailable:
		return http.StatusServiceUnavailable
	case workflow.KindPermissionDenied:
		return http.StatusForbidden
	case workflow.KindSessionBusy, workflow.KindSuperseded:
		return http.StatusConflict
	case workflow.KindNoImageCaptured:
		return http.StatusBadRequest
	case workflow.KindDecodeError, workflow.KindNoLocationFix:
		return http.StatusUnprocessableEntity
	case workflow.KindCaptureFailed, workflow.KindUploadFailed:
		return http.StatusBadGateway
	case workflow.KindCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	kind := workflow.Kind(err)
	return c.Status(statusFor(kind)).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  kind,
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	m := fiber.Map{
		"status":          "ok",
		"version":         s.cfg.Version,
		"capture_enabled": s.wf.CaptureEnabled(),
	}
	if s.cfg.Bridge != nil {
		m["devices"] = s.cfg.Bridge.DeviceCount()
	}
	return c.JSON(m)
}

func (s *Server) handleSession(c *fiber.Ctx) error {
	return c.JSON(s.view(s.wf.Session()))
}

// handleSessionImage returns the annotated JPEG, or its data URL with
// ?format=dataurl.
func (s *Server) handleSessionImage(c *fiber.Ctx) error {
	img := s.wf.Session().Annotated
	if img == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"error": "no annotated image"})
	}
	if c.Query("format") == "dataurl" {
		return c.SendString(img.DataURL())
	}
	c.Set(fiber.HeaderContentType, annotate.MIMEType)
	return c.Send(img.Data)
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if s.cfg.CaptureTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.CaptureTimeout)
		defer cancel()
	}
	sess, err := s.wf.Capture(ctx)
	if err != nil {
		if sess.ID != "" {
			s.broadcastSession(s.view(sess))
		}
		return s.fail(c, err)
	}
	v := s.view(sess)
	s.cfg.Previews.BroadcastBinary(sess.Annotated.Data)
	s.broadcastSession(v)
	return c.JSON(v)
}

// UploadRequest is the body of POST /api/upload.
type UploadRequest struct {
	FileName string `json:"file_name"`
}

func (s *Server) handleUpload(c *fiber.Ctx) error {
	var req UploadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	receipt, err := s.wf.Upload(c.UserContext(), req.FileName)
	s.broadcastSession(s.view(s.wf.Session()))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(receipt)
}

func (s *Server) handleReset(c *fiber.Ctx) error {
	v := s.view(s.wf.Reset())
	s.broadcastSession(v)
	return c.JSON(v)
}

func (s *Server) handleLocation(c *fiber.Ctx) error {
	m := fiber.Map{
		"capture_enabled": s.wf.CaptureEnabled(),
		"pending":         s.wf.LocationPending(),
	}
	if f, ok := s.wf.LastFix(); ok {
		m["fix"] = f
		m["text"] = f.Coordinate.String()
	}
	return c.JSON(m)
}

// handleRecheck repeats the availability check. The acquisition it starts
// runs under the server's context, not the request's.
func (s *Server) handleRecheck(c *fiber.Ctx) error {
	if err := s.wf.RecheckLocation(s.baseContext()); err != nil {
		return s.fail(c, err)
	}
	return s.handleLocation(c)
}

func (s *Server) handleRefresh(c *fiber.Ctx) error {
	f, err := s.wf.RefreshLocation(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"fix": f, "text": f.Coordinate.String()})
}

func (s *Server) handleNotifications(c *fiber.Ctx) error {
	return c.JSON(s.cfg.Events.Events())
}

func (s *Server) handleDriveStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"authenticated": s.cfg.Drive.IsAuthenticated()})
}

func (s *Server) handleDriveAuth(c *fiber.Ctx) error {
	return c.Redirect(s.cfg.Drive.AuthURL(s.issueState()), http.StatusTemporaryRedirect)
}

func (s *Server) issueState() string {
	state := uuid.NewString()
	now := time.Now()
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for k, exp := range s.states {
		if now.After(exp) {
			delete(s.states, k)
		}
	}
	s.states[state] = now.Add(oauthStateTTL)
	return state
}

// consumeState reports whether state was issued and is unexpired. Each state
// is accepted once.
func (s *Server) consumeState(state string) bool {
	if state == "" {
		return false
	}
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	exp, ok := s.states[state]
	delete(s.states, state)
	return ok && time.Now().Before(exp)
}

func (s *Server) handleDriveCallback(c *fiber.Ctx) error {
	code := c.Query("code")
	if code == "" {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "missing code"})
	}
	if !s.consumeState(c.Query("state")) {
		s.logger.Warn("drive callback with unknown state")
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "invalid state"})
	}
	if err := s.cfg.Drive.HandleCallback(c.UserContext(), code); err != nil {
		s.logger.Warn("drive authorization failed", "error", err)
		return c.Status(http.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	s.logger.Info("drive authorized")
	return c.SendString("Google Drive connected. You can close this window.")
}
