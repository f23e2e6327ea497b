// Package rpcapi exposes the five unary RPCs of spec.md section 6 as
// a gin JSON API, plus a WebRTC stream upgrade route per session.
//
// Grounded on Conceptual-Machines-magda-api's internal/api router and
// handler style (gin.New() + middleware, one handler struct per
// concern, ShouldBindJSON + gin.H error bodies); generalized from that
// repo's agent-chat endpoints to this spec's session RPCs. No
// protobuf stubs are hand-written for the RPC surface (spec.md names
// the five operations without committing to a wire format) — plain
// JSON routes instead, matching the teacher and magda-api's own choice
// of bare HTTP/JSON over a generated RPC framework.
package rpcapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/soundsride/soundsrided/internal/session"
	"github.com/soundsride/soundsrided/internal/sessionerr"
	"github.com/soundsride/soundsrided/internal/stream"
)

// Handler bundles the session registry and exposes it as a gin router.
type Handler struct {
	registry *session.Registry
	logger   *log.Logger
}

// New creates a Handler for the given session registry.
func New(registry *session.Registry, logger *log.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// Router builds the gin.Engine serving every route named in spec.md
// section 6 / SPEC_FULL.md's EXT section.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.requestLogger())

	r.POST("/ping", h.ping)
	r.POST("/sessions", h.startSession)
	r.POST("/sessions/:id/transitions", h.updateTransitionSpec)
	r.GET("/sessions/:id/chunk", h.getChunk)
	r.GET("/sessions/:id/position", h.getPosition)
	r.POST("/sessions/:id/stream", h.streamWebRTC)

	return r
}

// requestLogger replaces gin's default writer-based logger with one
// that logs through charmbracelet/log, following the teacher's
// practice of threading one logger through every component rather than
// writing straight to stdout.
func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			h.logger.Error("request", "path", c.Request.URL.Path, "status", c.Writer.Status(), "errors", c.Errors.String())
			return
		}
		h.logger.Debug("request", "path", c.Request.URL.Path, "status", c.Writer.Status())
	}
}

// ping implements spec.md section 6's Ping() -> Empty.
func (h *Handler) ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{})
}

// startSession implements StartSession() -> {session_id: u32}.
func (h *Handler) startSession(c *gin.Context) {
	sess := h.registry.Start()
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID})
}

// transitionPayload mirrors one entry of UpdateTransitionSpec's
// transitions list (spec.md section 6).
type transitionPayload struct {
	TransitionID                      uint64  `json:"transition_id" binding:"required"`
	TransitionToGenre                 string  `json:"transition_to_genre" binding:"required"`
	EstimatedTimeToTransitionSec      float64 `json:"estimated_time_to_transition"`
	EstimatedGeoDistanceToTransitionM float64 `json:"estimated_geo_distance_to_transition"`
}

type updateTransitionSpecRequest struct {
	Transitions []transitionPayload `json:"transitions"`
}

// updateTransitionSpec implements UpdateTransitionSpec(...) -> Empty.
// Seconds->ms conversion and the ETT<0 drop happen inside
// session.Session.HandleForecast, not here, so the parsing rules live
// in one place.
func (h *Handler) updateTransitionSpec(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}

	var req updateTransitionSpecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	raw := session.RawForecast{Transitions: make([]session.RawTransition, len(req.Transitions))}
	for i, t := range req.Transitions {
		raw.Transitions[i] = session.RawTransition{
			TransitionID:                       t.TransitionID,
			TransitionToGenre:                  t.TransitionToGenre,
			EstimatedTimeToTransitionSec:       t.EstimatedTimeToTransitionSec,
			EstimatedGeoDistanceToTransitionM:  t.EstimatedGeoDistanceToTransitionM,
		}
	}

	err := sess.HandleForecast(c.Request.Context(), time.Now().UnixMilli(), raw)

	// SessionBusy is dropped silently at user level per spec.md section
	// 7: the forecast was discarded, but that's not a failure the
	// caller needs to react to.
	if errors.Is(err, sessionerr.ErrSessionBusy) {
		h.logger.Warn("forecast dropped, session busy", "session_id", sess.ID)
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

// getChunk implements GetChunk(session_id) -> {first_frame_id, audio_chunk}.
func (h *Handler) getChunk(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}

	frameID, chunk, ok := sess.GetChunk()
	if !ok {
		writeErr(c, sessionerr.ErrAudioUnavailable)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"first_frame_id": frameID,
		"audio_chunk":    chunk,
	})
}

// getPosition implements GetPosition() -> {latitude, longitude, altitude}.
func (h *Handler) getPosition(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}

	pos, err := sess.GetPosition(c.Request.Context())
	if err != nil {
		writeErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"latitude":  pos.Latitude,
		"longitude": pos.Longitude,
		"altitude":  pos.Altitude,
	})
}

// streamWebRTC upgrades to a WebRTC track streaming the session's mix,
// the domain-stack extra SPEC_FULL.md adds alongside the pull-style
// GetChunk RPC.
func (h *Handler) streamWebRTC(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	stream.NewWebRTCHandler(sess.Broadcaster, h.logger).ServeHTTP(c.Writer, c.Request)
}

func (h *Handler) lookupSession(c *gin.Context) (*session.Session, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}

	sess, ok := h.registry.Get(uint32(id))
	if !ok {
		writeErr(c, sessionerr.ErrSessionNotFound)
		return nil, false
	}
	return sess, true
}

// writeErr maps a sessionerr.Kind to the HTTP status spec.md section 6
// specifies: InvalidArgument -> 400, NotFound -> 404, Unavailable ->
// 503, Internal -> 500.
func writeErr(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	switch sessionerr.Classify(err) {
	case sessionerr.KindInvalidArgument:
		c.JSON(http.StatusBadRequest, body)
	case sessionerr.KindNotFound:
		c.JSON(http.StatusNotFound, body)
	case sessionerr.KindUnavailable:
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}
