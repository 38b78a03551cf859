package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/middleware"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
)

// ParseRequest is the body of POST /parse
type ParseRequest struct {
	Text string `json:"text"`
}

// OverviewRequest is the body of POST /overview
type OverviewRequest struct {
	Text   string               `json:"text"`
	Record domain.MedicalRecord `json:"record"`
}

// ReconcileRequest is the body of POST /reconcile. A missing Now means the
// server's current time.
type ReconcileRequest struct {
	Current []domain.Medication    `json:"current"`
	Records []domain.MedicalRecord `json:"records"`
	History []domain.MedicalRecord `json:"history,omitempty"`
	Now     *time.Time             `json:"now,omitempty"`
}

// InteractionsRequest is the body of POST /interactions
type InteractionsRequest struct {
	Medications []domain.Medication `json:"medications"`
}

const defaultListLimit = 50

func (s *Server) handleParse(c *gin.Context) {
	var req ParseRequest
	if !s.bind(c, &req) {
		return
	}

	result, err := s.service.ParseNote(c.Request.Context(), req.Text)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleOverview(c *gin.Context) {
	var req OverviewRequest
	if !s.bind(c, &req) {
		return
	}

	overview, err := s.service.Overview(c.Request.Context(), req.Text, req.Record)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

func (s *Server) handleReconcile(c *gin.Context) {
	var req ReconcileRequest
	if !s.bind(c, &req) {
		return
	}

	now := s.clock()
	if req.Now != nil {
		now = *req.Now
	}

	result, err := s.service.Reconcile(c.Request.Context(), &service.ReconcileParams{
		Current: req.Current,
		Records: req.Records,
		History: req.History,
		Now:     now,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleInteractions(c *gin.Context) {
	var req InteractionsRequest
	if !s.bind(c, &req) {
		return
	}
	c.JSON(http.StatusOK, s.service.CheckInteractions(c.Request.Context(), req.Medications))
}

func (s *Server) handleDocumentText(c *gin.Context) {
	maxSize := s.config.Upload.MaxFileSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1<<20)

	header, err := c.FormFile("file")
	if err != nil {
		s.respondError(c, domain.NewValidationError("file", "multipart field 'file' is required", nil))
		return
	}
	if header.Size > maxSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":          "file exceeds maximum upload size",
			"max_bytes":      maxSize,
			"correlation_id": c.GetString(middleware.CorrelationIDKey),
		})
		return
	}

	file, err := header.Open()
	if err != nil {
		s.respondError(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(c, err)
		return
	}

	result, err := s.service.ExtractDocument(c.Request.Context(), header.Filename, content)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handlePatientReconcile(c *gin.Context) {
	now, ok := s.queryTime(c, "now")
	if !ok {
		return
	}

	result, err := s.service.ReconcilePatient(c.Request.Context(), c.Param("id"), now)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleSaveReview(c *gin.Context) {
	if !s.requireReviews(c) {
		return
	}

	var d review.Decision
	if !s.bind(c, &d) {
		return
	}
	d.ID = 0

	if err := s.reviews.Save(c.Request.Context(), &d); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (s *Server) handleListReviews(c *gin.Context) {
	if !s.requireReviews(c) {
		return
	}

	limit, offset := pagination(c)
	decisions, err := s.reviews.List(c.Request.Context(), c.Query("patient_id"), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if decisions == nil {
		decisions = []*review.Decision{}
	}
	c.JSON(http.StatusOK, gin.H{
		"decisions": decisions,
		"limit":     limit,
		"offset":    offset,
	})
}

// handlePendingReviews reconciles the patient and returns the flagged
// changes that have no approved or rejected decision yet.
func (s *Server) handlePendingReviews(c *gin.Context) {
	if !s.requireReviews(c) {
		return
	}

	patientID := c.Query("patient_id")
	now, ok := s.queryTime(c, "now")
	if !ok {
		return
	}

	result, err := s.service.ReconcilePatient(c.Request.Context(), patientID, now)
	if err != nil {
		s.respondError(c, err)
		return
	}

	pending, err := review.Pending(c.Request.Context(), s.reviews, patientID, result.Result.RequiresAttention)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patient_id": patientID,
		"pending":    pending,
	})
}

func (s *Server) handleGetReview(c *gin.Context) {
	if !s.requireReviews(c) {
		return
	}

	id, ok := s.pathID(c)
	if !ok {
		return
	}
	decision, err := s.reviews.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleDeleteReview(c *gin.Context) {
	if !s.requireReviews(c) {
		return
	}

	id, ok := s.pathID(c)
	if !ok {
		return
	}

	if err := s.reviews.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) requireReviews(c *gin.Context) bool {
	if s.reviews == nil {
		s.respondError(c, domain.ErrUnavailable)
		return false
	}
	return true
}

func (s *Server) pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		s.respondError(c, domain.NewValidationError("id", "must be a numeric decision ID", c.Param("id")))
		return 0, false
	}
	return id, true
}

func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
		return false
	}
	return true
}

// queryTime reads an optional RFC 3339 query parameter. A missing value is
// the zero time.
func (s *Server) queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		s.respondError(c, domain.NewValidationError(name, "must be an RFC 3339 timestamp", raw))
		return time.Time{}, false
	}
	return t, true
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > 500 {
		limit = defaultListLimit
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// respondError maps domain errors to HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}

	body := gin.H{
		"error":          err.Error(),
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	}
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		body["field"] = vErr.Field
	}

	if status == http.StatusInternalServerError {
		s.logger.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		body["error"] = "internal server error"
	}

	c.AbortWithStatusJSON(status, body)
}
