package registry

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ganot/scanpoint/internal/domain/checkin"
	"github.com/ganot/scanpoint/internal/logger"
)

type attendanceRequest struct {
	ScanID     string    `json:"scan_id" binding:"required"`
	IdentityID string    `json:"identity_id" binding:"required"`
	ActivityID string    `json:"activity_id" binding:"required"`
	CapturedAt time.Time `json:"captured_at"`
	Day        string    `json:"day" binding:"required"`
}

type countResponse struct {
	IdentityID string `json:"identity_id"`
	ActivityID string `json:"activity_id"`
	Count      int    `json:"count"`
}

// Handler serves the registry HTTP API.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger.OrDiscard(log)}
}

func (h *Handler) GetIdentity(c *gin.Context) {
	identity, err := h.svc.Identity(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

func (h *Handler) GetActivity(c *gin.Context) {
	activity, err := h.svc.Activity(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, activity)
}

func (h *Handler) CountAttendance(c *gin.Context) {
	activityID, identityID := c.Param("id"), c.Param("identity_id")
	n, err := h.svc.CountCheckIns(c.Request.Context(), identityID, activityID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, countResponse{IdentityID: identityID, ActivityID: activityID, Count: n})
}

// RecordAttendance answers 201 for a new record and 409 with the current
// count when an equivalent record already exists.
func (h *Handler) RecordAttendance(c *gin.Context) {
	ctx := c.Request.Context()

	var req attendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.svc.InsertCheckIn(ctx, checkin.CheckIn{
		ScanID:     req.ScanID,
		IdentityID: req.IdentityID,
		ActivityID: req.ActivityID,
		CapturedAt: req.CapturedAt,
		Day:        req.Day,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !res.Created {
		c.JSON(http.StatusConflict, res)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, checkin.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, checkin.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.logger.ErrorContext(c.Request.Context(), "registry request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
