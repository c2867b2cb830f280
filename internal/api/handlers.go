package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/muster/internal/config"
	"github.com/roach88/muster/internal/event"
)

// EventView is the JSON form of a record.
type EventView struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	URL              string    `json:"url,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	State            string    `json:"state"`
	Notified         bool      `json:"notified"`
	Attendees        []string  `json:"attendees"`
	ParticipantCount int       `json:"participant_count"`
	AnnouncementRef  string    `json:"announcement_ref,omitempty"`
	SpaceRef         string    `json:"space_ref,omitempty"`
}

// NewEventView converts r.
func NewEventView(r *event.Record) EventView {
	attendees := r.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return EventView{
		ID:               r.ID,
		Title:            r.Title,
		URL:              r.URL,
		Start:            r.Start,
		End:              r.End,
		State:            r.State.String(),
		Notified:         r.Notified,
		Attendees:        attendees,
		ParticipantCount: r.ParticipantCount,
		AnnouncementRef:  r.AnnouncementRef,
		SpaceRef:         r.SpaceRef,
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case event.IsNotFound(err):
		return http.StatusNotFound
	case event.IsInvalidState(err):
		return http.StatusConflict
	case event.IsCollaboratorFailure(err):
		return http.StatusBadGateway
	case errors.Is(err, config.ErrInvalid),
		errors.Is(err, config.ErrUnknownKey),
		errors.Is(err, config.ErrNotRuntime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return 0, false
	}
	return id, true
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) listEvents(c *gin.Context) {
	records, err := s.store.All(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	views := make([]EventView, 0, len(records))
	for _, r := range records {
		views = append(views, NewEventView(r))
	}
	c.JSON(http.StatusOK, gin.H{"events": views})
}

func (s *Server) getEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	r, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": NewEventView(r)})
}

type startRequest struct {
	Admin bool `json:"admin"`
}

func (s *Server) startEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req startRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	r, err := s.store.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.engine.CheckManualStart(r, req.Admin); err != nil {
		respondError(c, err)
		return
	}
	if err := s.engine.TryStart(ctx, id, true); err != nil {
		respondError(c, err)
		return
	}

	s.logger.Info("event started by hand", "event_id", id, "admin", req.Admin)
	s.respondEvent(c, id)
}

func (s *Server) skipEvent(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	r, err := s.store.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.engine.CheckSkip(r); err != nil {
		respondError(c, err)
		return
	}
	skipped, err := s.engine.Skip(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"skipped": skipped})
}

type attendanceRequest struct {
	Attendees []string `json:"attendees"`
}

func (s *Server) setAttendance(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.RecordAttendance(c.Request.Context(), id, req.Attendees); err != nil {
		respondError(c, err)
		return
	}
	s.respondEvent(c, id)
}

type participantsRequest struct {
	Count *int `json:"count"`
}

func (s *Server) setParticipants(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req participantsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count == nil || *req.Count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a non-negative integer"})
		return
	}
	if err := s.engine.UpdateParticipantCount(c.Request.Context(), id, *req.Count); err != nil {
		respondError(c, err)
		return
	}
	s.respondEvent(c, id)
}

func (s *Server) createTestEvent(c *gin.Context) {
	r, err := s.engine.CreateTestEvent(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": NewEventView(r)})
}

type settingRequest struct {
	Value *string `json:"value"`
}

func (s *Server) putSetting(c *gin.Context) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value is required"})
		return
	}

	key := c.Param("key")
	if err := s.settings.SetSetting(c.Request.Context(), key, *req.Value); err != nil {
		respondError(c, err)
		return
	}
	s.logger.Info("setting changed", "key", key)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": *req.Value})
}

func (s *Server) respondEvent(c *gin.Context, id int64) {
	r, err := s.store.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": NewEventView(r)})
}
