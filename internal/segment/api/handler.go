package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gambhirsharma/unleash/internal/segment"
	"github.com/gin-gonic/gin"
)

// Error codes returned in ErrorResponse.Error.
const (
	HttpInternalError       = "internal_error"
	HttpInvalidIDError      = "invalid_id"
	HttpInvalidJsonError    = "invalid_json"
	HttpValidationError     = "validation_error"
	HttpEmptyNameError      = "empty_segment_name"
	HttpDuplicateNameError  = "duplicate_segment_name"
	HttpLimitExceededError  = "limit_exceeded"
	HttpInvalidProjectError = "invalid_project"
	HttpNotFoundError       = "segment_not_found"
)

// Handler handles segment administration HTTP requests.
type Handler struct {
	segments *segment.Service
}

// NewHandler creates a new segment API handler.
func NewHandler(segments *segment.Service) *Handler {
	return &Handler{segments: segments}
}

// ErrorResponse is the error response body.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ValidateNameRequest is the request body for POST /api/admin/segments/validate.
type ValidateNameRequest struct {
	Name string `json:"name"`
}

// UpdateStrategySegmentsRequest is the request body for
// PUT /api/admin/strategies/{strategyId}/segments.
type UpdateStrategySegmentsRequest struct {
	SegmentIDs []int `json:"segmentIds"`
}

// CloneStrategySegmentsRequest is the request body for
// POST /api/admin/strategies/{strategyId}/segments/clone.
type CloneStrategySegmentsRequest struct {
	TargetStrategyID string `json:"targetStrategyId"`
}

// HandleList handles GET /api/admin/segments. The optional "active" query
// parameter restricts the listing to segments currently linked to a strategy.
func (h *Handler) HandleList(c *gin.Context) {
	var (
		segments []segment.Segment
		err      error
	)
	if c.Query("active") == "true" {
		segments, err = h.segments.GetActive(c.Request.Context())
	} else {
		segments, err = h.segments.GetAll(c.Request.Context())
	}
	if err != nil {
		slog.Error("Segment list error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: HttpInternalError, Message: "Failed to list segments"})
		return
	}
	if segments == nil {
		segments = []segment.Segment{}
	}
	c.JSON(http.StatusOK, segments)
}

// HandleGet handles GET /api/admin/segments/{id}.
func (h *Handler) HandleGet(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	s, err := h.segments.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// HandleCreate handles POST /api/admin/segments. The raw body is passed to
// the service untouched; structural validation happens there.
func (h *Handler) HandleCreate(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidJsonError, Message: "Failed to read request body"})
		return
	}

	created, err := h.segments.Create(c.Request.Context(), raw, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// HandleUpdate handles PUT /api/admin/segments/{id}.
func (h *Handler) HandleUpdate(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidJsonError, Message: "Failed to read request body"})
		return
	}

	updated, err := h.segments.Update(c.Request.Context(), id, raw, actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// HandleDelete handles DELETE /api/admin/segments/{id}.
func (h *Handler) HandleDelete(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	if err := h.segments.Delete(c.Request.Context(), id, actorFrom(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleValidateName handles POST /api/admin/segments/validate. It runs the
// name checks without mutating anything, for early feedback in forms.
func (h *Handler) HandleValidateName(c *gin.Context) {
	var req ValidateNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidJsonError, Message: "Invalid JSON body"})
		return
	}

	if err := h.segments.ValidateName(c.Request.Context(), req.Name); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "name": req.Name})
}

// HandleGetStrategies handles GET /api/admin/segments/{id}/strategies.
func (h *Handler) HandleGetStrategies(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	strategies, err := h.segments.GetStrategies(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if strategies == nil {
		strategies = []segment.Strategy{}
	}
	c.JSON(http.StatusOK, strategies)
}

// HandleAddToStrategy handles POST /api/admin/segments/{id}/strategies/{strategyId}.
func (h *Handler) HandleAddToStrategy(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	if err := h.segments.AddToStrategy(c.Request.Context(), id, c.Param("strategyId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// HandleRemoveFromStrategy handles DELETE /api/admin/segments/{id}/strategies/{strategyId}.
func (h *Handler) HandleRemoveFromStrategy(c *gin.Context) {
	id, ok := h.segmentID(c)
	if !ok {
		return
	}

	if err := h.segments.RemoveFromStrategy(c.Request.Context(), id, c.Param("strategyId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetByStrategy handles GET /api/admin/strategies/{strategyId}/segments.
func (h *Handler) HandleGetByStrategy(c *gin.Context) {
	segments, err := h.segments.GetByStrategy(c.Request.Context(), c.Param("strategyId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if segments == nil {
		segments = []segment.Segment{}
	}
	c.JSON(http.StatusOK, segments)
}

// HandleUpdateStrategySegments handles PUT /api/admin/strategies/{strategyId}/segments.
// Reconciliation is best-effort: a failed batch member leaves the links
// partially reconciled and surfaces the first error.
func (h *Handler) HandleUpdateStrategySegments(c *gin.Context) {
	var req UpdateStrategySegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidJsonError, Message: "Invalid JSON body"})
		return
	}

	if err := h.segments.UpdateStrategySegments(c.Request.Context(), c.Param("strategyId"), req.SegmentIDs); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

// HandleCloneStrategySegments handles POST /api/admin/strategies/{strategyId}/segments/clone.
func (h *Handler) HandleCloneStrategySegments(c *gin.Context) {
	var req CloneStrategySegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetStrategyID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidJsonError, Message: "targetStrategyId is required"})
		return
	}

	if err := h.segments.CloneStrategySegments(c.Request.Context(), c.Param("strategyId"), req.TargetStrategyID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

// HandleGetActiveForClient handles GET /api/client/segments.
func (h *Handler) HandleGetActiveForClient(c *gin.Context) {
	segments, err := h.segments.GetActiveForClient(c.Request.Context())
	if err != nil {
		slog.Error("Client segment list error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: HttpInternalError, Message: "Failed to list client segments"})
		return
	}
	if segments == nil {
		segments = []segment.ClientSegment{}
	}
	c.JSON(http.StatusOK, segments)
}

func (h *Handler) segmentID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidIDError, Message: "segment id must be an integer"})
		return 0, false
	}
	return id, true
}

// writeError maps the service error taxonomy onto HTTP responses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		validationErr *segment.ValidationError
		duplicateErr  *segment.DuplicateNameError
		limitErr      *segment.LimitExceededError
		projectErr    *segment.InvalidProjectError
	)

	switch {
	case errors.Is(err, segment.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: HttpNotFoundError, Message: err.Error()})
	case errors.Is(err, segment.ErrNameEmpty):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpEmptyNameError, Message: err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpValidationError, Message: err.Error(), Details: validationErr.Details()})
	case errors.As(err, &duplicateErr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: HttpDuplicateNameError, Message: err.Error(), Details: duplicateErr.Details()})
	case errors.As(err, &limitErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpLimitExceededError, Message: err.Error(), Details: limitErr.Details()})
	case errors.As(err, &projectErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: HttpInvalidProjectError, Message: err.Error(), Details: projectErr.Details()})
	default:
		slog.Error("Segment API error", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: HttpInternalError, Message: "Internal error"})
	}
}

// actorFrom extracts the acting identity from request headers. The identity
// system itself lives outside this service; the headers are trusted as-is.
func actorFrom(c *gin.Context) segment.Actor {
	return segment.Actor{
		Username: c.GetHeader("X-Unleash-Username"),
		Email:    c.GetHeader("X-Unleash-Email"),
	}
}
