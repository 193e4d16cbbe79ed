package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/attendance"
	"github.com/FunkyDevv/ITRACK-sub000/internal/auth"
	"github.com/FunkyDevv/ITRACK-sub000/internal/directory"
	"github.com/FunkyDevv/ITRACK-sub000/internal/photo"
)

const defaultMaxUpload = 20 << 20

// Authenticator issues tokens for directory users.
type Authenticator interface {
	Login(ctx context.Context, req auth.LoginRequest) (auth.TokenPair, directory.User, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
}

// PhotoUploader stores a raw photo and returns its public URL.
type PhotoUploader interface {
	Upload(ctx context.Context, raw []byte) (photo.Result, error)
}

// Handler serves the v1 API.
type Handler struct {
	att       *attendance.Service
	auth      Authenticator
	photos    PhotoUploader
	health    map[string]func(context.Context) bool
	maxUpload int64
}

// New creates a handler from router deps.
func New(d Deps) *Handler {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handler{att: d.Attendance, auth: d.Auth, photos: d.Photos, health: d.Health, maxUpload: maxUpload}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Auth ----------

func (h *Handler) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "provide {\"email\", \"password\"}")
		return
	}
	tokens, user, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "user": user})
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "provide {\"refreshToken\"}")
		return
	}
	tokens, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// ---------- Photos ----------

// UploadPhoto accepts a multipart "file" or a JSON {"data": dataURL} body.
func (h *Handler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)

	var raw []byte
	if strings.Contains(c.ContentType(), "multipart/form-data") {
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			badRequest(c, "file field required")
			return
		}
		defer file.Close()
		if raw, err = io.ReadAll(file); err != nil {
			badRequest(c, "read file failed")
			return
		}
	} else {
		var body struct {
			Data string `json:"data" binding:"required"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "provide {\"data\": \"<base64 data URL>\"}")
			return
		}
		decoded, err := photo.DecodeDataURL(body.Data)
		if err != nil {
			writeError(c, err)
			return
		}
		raw = decoded
	}

	res, err := h.photos.Upload(c.Request.Context(), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---------- Attendance ----------

type timeInRequest struct {
	Location attendance.Location `json:"location"`
	PhotoURL string              `json:"photoUrl"`
}

type photoRequest struct {
	PhotoURL string `json:"photoUrl"`
}

type decisionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) TimeIn(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req timeInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "provide {\"location\", \"photoUrl\"}")
		return
	}
	id, err := h.att.TimeIn(c.Request.Context(), claims.Subject, req.Location, req.PhotoURL)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *Handler) TimeOut(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req photoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "provide {\"photoUrl\"}")
		return
	}
	evt, err := h.att.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if evt.InternID != claims.Subject {
		forbidden(c)
		return
	}
	if err := h.att.TimeOut(c.Request.Context(), evt.ID, req.PhotoURL); err != nil {
		writeError(c, err)
		return
	}
	h.respondEvent(c, evt.ID)
}

func (h *Handler) Approve(c *gin.Context) {
	h.decide(c, h.att.Approve)
}

func (h *Handler) Reject(c *gin.Context) {
	h.decide(c, h.att.Reject)
}

func (h *Handler) decide(c *gin.Context, op func(ctx context.Context, eventID, approverID, reason string) error) {
	claims, _ := auth.ClaimsFrom(c)
	var req decisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "provide {\"reason\"}")
			return
		}
	}
	evt, err := h.att.Event(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if claims.Role == string(directory.RoleTeacher) && evt.TeacherID != claims.Subject {
		forbidden(c)
		return
	}
	if err := op(c.Request.Context(), evt.ID, claims.Subject, req.Reason); err != nil {
		writeError(c, err)
		return
	}
	h.respondEvent(c, evt.ID)
}

func (h *Handler) respondEvent(c *gin.Context, id string) {
	evt, err := h.att.Event(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, evt)
}

func (h *Handler) CurrentSession(c *gin.Context) {
	evt, err := h.att.GetCurrentSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": evt})
}

func (h *Handler) PendingSession(c *gin.Context) {
	evt, err := h.att.GetPendingSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": evt})
}

func (h *Handler) History(c *gin.Context) {
	events, err := h.att.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) TeacherAttendance(c *gin.Context) {
	events, err := h.att.TeacherEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if events == nil {
		events = []attendance.Event{}
	}
	c.JSON(http.StatusOK, attendance.TeacherView{Events: events, Pending: attendance.PendingEvents(events)})
}

// ---------- Streams ----------

func (h *Handler) InternStream(c *gin.Context) {
	w, err := h.att.SubscribeToInternAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer w.Close()
	stream(c, w.C, func(v attendance.InternView) error { return v.Err })
}

func (h *Handler) TeacherStream(c *gin.Context) {
	w, err := h.att.SubscribeToTeacherAttendance(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	defer w.Close()
	stream(c, w.C, func(v attendance.TeacherView) error { return v.Err })
}

// stream relays views as server-sent events until the client goes away or
// the watch ends. Failed reloads are sent as "error" events and the stream
// stays open for the next change.
func stream[T any](c *gin.Context, views <-chan T, errOf func(T) error) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			if err := errOf(v); err != nil {
				c.SSEvent("error", gin.H{"error": apperr.Message(err), "code": string(apperr.KindOf(err))})
			} else {
				c.SSEvent("snapshot", v)
			}
			c.Writer.Flush()
		}
	}
}
