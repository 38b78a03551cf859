package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// MedicationInput is a medication as supplied by an MCP client. Dates are
// strings so the generated input schema stays plain.
type MedicationInput struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name" jsonschema:"medication name, e.g. Metformin"`
	Strength  string `json:"strength,omitempty" jsonschema:"strength, e.g. 500mg"`
	Dosage    string `json:"dosage,omitempty" jsonschema:"amount per dose, e.g. 1 tablet"`
	Frequency string `json:"frequency,omitempty" jsonschema:"e.g. twice daily"`
	StartDate string `json:"start_date,omitempty" jsonschema:"YYYY-MM-DD or RFC 3339"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"YYYY-MM-DD or RFC 3339"`
	Notes     string `json:"notes,omitempty"`
}

// RecordInput is a visit record as supplied by an MCP client.
type RecordInput struct {
	ID           string `json:"id,omitempty"`
	Date         string `json:"date,omitempty" jsonschema:"visit date, YYYY-MM-DD or RFC 3339"`
	Doctor       string `json:"doctor,omitempty"`
	VisitType    string `json:"visit_type,omitempty"`
	Complaint    string `json:"complaint,omitempty"`
	Diagnosis    string `json:"diagnosis,omitempty"`
	Prescription string `json:"prescription,omitempty" jsonschema:"one medication per line, e.g. Amlodipine 5mg - once daily"`
	Notes        string `json:"notes,omitempty"`
}

// ParseVisitNoteInput defines parameters for parse_visit_note
type ParseVisitNoteInput struct {
	Text string `json:"text" jsonschema:"free-text visit note"`
}

// VisitOverviewInput defines parameters for visit_overview
type VisitOverviewInput struct {
	Text   string      `json:"text" jsonschema:"free-text visit note"`
	Record RecordInput `json:"record" jsonschema:"metadata of the visit the note belongs to"`
}

// ReconcileMedicationsInput defines parameters for reconcile_medications
type ReconcileMedicationsInput struct {
	Current []MedicationInput `json:"current" jsonschema:"the patient's current medication list"`
	Records []RecordInput     `json:"records" jsonschema:"records of the latest visit"`
	History []RecordInput     `json:"history,omitempty" jsonschema:"older records used only for the lookback window"`
	Now     string            `json:"now,omitempty" jsonschema:"evaluation time in RFC 3339; defaults to the server clock"`
}

// CheckInteractionsInput defines parameters for check_interactions
type CheckInteractionsInput struct {
	Medications []MedicationInput `json:"medications"`
}

// RecordReviewInput defines parameters for record_review
type RecordReviewInput struct {
	PatientID      string `json:"patient_id"`
	MedicationName string `json:"medication_name"`
	ChangeType     string `json:"change_type" jsonschema:"added, modified, discontinued or continued"`
	Status         string `json:"status,omitempty" jsonschema:"approved, rejected or pending; defaults to pending"`
	Reviewer       string `json:"reviewer,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// ListReviewsInput defines parameters for list_reviews
type ListReviewsInput struct {
	PatientID string `json:"patient_id,omitempty" jsonschema:"omit to list every patient"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// ExportReviewsInput defines parameters for export_reviews
type ExportReviewsInput struct{}

// ImportReviewsInput defines parameters for import_reviews
type ImportReviewsInput struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON export"`
}

// ListReviewsResult is the output of list_reviews
type ListReviewsResult struct {
	Decisions []*review.Decision `json:"decisions"`
	Total     int64              `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ExportReviewsResult is the output of export_reviews
type ExportReviewsResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
}

// ImportReviewsResult is the output of import_reviews
type ImportReviewsResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

func (s *LiteServer) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "parse_visit_note",
		Description: "Extract complaints, diagnoses, medications, vitals, follow-up and urgency from a free-text visit note.",
	}, s.handleParseVisitNote)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "visit_overview",
		Description: "Summarize a visit note: key findings, recommendations, red flags and new medications.",
	}, s.handleVisitOverview)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "reconcile_medications",
		Description: "Compare a current medication list against the latest visit records and report added, modified, discontinued and continued medications with interaction warnings.",
	}, s.handleReconcileMedications)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "check_interactions",
		Description: "Flag known interacting drug pairs and duplicated therapeutic classes. Advisory only.",
	}, s.handleCheckInteractions)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "record_review",
		Description: "Record a reviewer decision on a medication change for a patient. Replaces an earlier decision on the same change.",
	}, s.handleRecordReview)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_reviews",
		Description: "List recorded review decisions, newest first.",
	}, s.handleListReviews)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "export_reviews",
		Description: "Export all review decisions to a JSON file in the data directory.",
	}, s.handleExportReviews)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "import_reviews",
		Description: "Import review decisions from a JSON export. Existing decisions are skipped.",
	}, s.handleImportReviews)

	s.logger.WithField("tool_count", 8).Info("Registered MCP tools")
}

func (s *LiteServer) handleParseVisitNote(ctx context.Context, _ *mcp.CallToolRequest, in ParseVisitNoteInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "parse_visit_note").Debug("Tool invoked")

	result, err := s.service.ParseNote(ctx, in.Text)
	if err != nil {
		return s.toolError("parse_visit_note", err)
	}
	return jsonResult(result)
}

func (s *LiteServer) handleVisitOverview(ctx context.Context, _ *mcp.CallToolRequest, in VisitOverviewInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "visit_overview").Debug("Tool invoked")

	record, err := toRecord(in.Record, "record")
	if err != nil {
		return s.toolError("visit_overview", err)
	}
	overview, err := s.service.Overview(ctx, in.Text, record)
	if err != nil {
		return s.toolError("visit_overview", err)
	}
	return jsonResult(overview)
}

func (s *LiteServer) handleReconcileMedications(ctx context.Context, _ *mcp.CallToolRequest, in ReconcileMedicationsInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "reconcile_medications").Debug("Tool invoked")

	params, err := s.reconcileParams(in)
	if err != nil {
		return s.toolError("reconcile_medications", err)
	}
	result, err := s.service.Reconcile(ctx, params)
	if err != nil {
		return s.toolError("reconcile_medications", err)
	}
	return jsonResult(result)
}

func (s *LiteServer) handleCheckInteractions(ctx context.Context, _ *mcp.CallToolRequest, in CheckInteractionsInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "check_interactions").Debug("Tool invoked")

	meds, err := toMedications(in.Medications, "medications")
	if err != nil {
		return s.toolError("check_interactions", err)
	}
	return jsonResult(s.service.CheckInteractions(ctx, meds))
}

func (s *LiteServer) handleRecordReview(ctx context.Context, _ *mcp.CallToolRequest, in RecordReviewInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "record_review").Debug("Tool invoked")

	decision := &review.Decision{
		PatientID:      in.PatientID,
		MedicationName: in.MedicationName,
		ChangeType:     domain.ChangeType(in.ChangeType),
		Status:         review.Status(in.Status),
		Reviewer:       in.Reviewer,
		Notes:          in.Notes,
	}
	if err := s.reviewStore.Save(ctx, decision); err != nil {
		return s.toolError("record_review", err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id":  decision.PatientID,
		"medication":  decision.NormalizedName,
		"change_type": decision.ChangeType,
		"status":      decision.Status,
	}).Info("Review decision recorded")
	return jsonResult(decision)
}

func (s *LiteServer) handleListReviews(ctx context.Context, _ *mcp.CallToolRequest, in ListReviewsInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "list_reviews").Debug("Tool invoked")

	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := in.Offset
	if offset < 0 {
		offset = 0
	}

	decisions, err := s.reviewStore.List(ctx, in.PatientID, limit, offset)
	if err != nil {
		return s.toolError("list_reviews", err)
	}
	total, err := s.reviewStore.Count(ctx, in.PatientID)
	if err != nil {
		return s.toolError("list_reviews", err)
	}
	return jsonResult(ListReviewsResult{Decisions: decisions, Total: total, Limit: limit, Offset: offset})
}

func (s *LiteServer) handleExportReviews(ctx context.Context, _ *mcp.CallToolRequest, _ ExportReviewsInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "export_reviews").Debug("Tool invoked")

	exportDir := s.config.ExportDir()
	if err := os.MkdirAll(exportDir, 0755); err != nil {
		return s.toolError("export_reviews", fmt.Errorf("failed to create export directory: %w", err))
	}

	filename := fmt.Sprintf("reviews_export_%s.json", s.clock().Format("20060102_150405"))
	filePath := filepath.Join(exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return s.toolError("export_reviews", fmt.Errorf("failed to create export file: %w", err))
	}
	defer file.Close()

	if err := s.reviewStore.ExportJSON(ctx, file); err != nil {
		return s.toolError("export_reviews", err)
	}

	count, err := s.reviewStore.Count(ctx, "")
	if err != nil {
		return s.toolError("export_reviews", err)
	}
	return jsonResult(ExportReviewsResult{FilePath: filePath, Count: count})
}

func (s *LiteServer) handleImportReviews(ctx context.Context, _ *mcp.CallToolRequest, in ImportReviewsInput) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", "import_reviews").Debug("Tool invoked")

	if in.FilePath == "" {
		return s.toolError("import_reviews", domain.NewValidationError("file_path", "file path is required", nil))
	}
	file, err := os.Open(in.FilePath)
	if err != nil {
		return s.toolError("import_reviews", domain.NewValidationError("file_path", err.Error(), in.FilePath))
	}
	defer file.Close()

	imported, skipped, err := s.reviewStore.ImportJSON(ctx, file)
	if err != nil {
		return s.toolError("import_reviews", err)
	}
	return jsonResult(ImportReviewsResult{Imported: imported, Skipped: skipped})
}

// reconcileParams converts tool input into service parameters. An omitted
// "now" falls back to the server clock.
func (s *LiteServer) reconcileParams(in ReconcileMedicationsInput) (*service.ReconcileParams, error) {
	current, err := toMedications(in.Current, "current")
	if err != nil {
		return nil, err
	}
	records, err := toRecords(in.Records, "records")
	if err != nil {
		return nil, err
	}
	history, err := toRecords(in.History, "history")
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if in.Now != "" {
		now, err = time.Parse(time.RFC3339, in.Now)
		if err != nil {
			return nil, domain.NewValidationError("now", "must be an RFC 3339 timestamp", in.Now)
		}
	}

	return &service.ReconcileParams{Current: current, Records: records, History: history, Now: now}, nil
}

func toMedications(in []MedicationInput, field string) ([]domain.Medication, error) {
	out := make([]domain.Medication, 0, len(in))
	for i, m := range in {
		med := domain.Medication{
			ID:        m.ID,
			Name:      m.Name,
			Strength:  m.Strength,
			Dosage:    m.Dosage,
			Frequency: m.Frequency,
			Notes:     m.Notes,
		}
		if m.StartDate != "" {
			start, err := parseDate(m.StartDate)
			if err != nil {
				return nil, domain.NewValidationError(fmt.Sprintf("%s[%d].start_date", field, i), err.Error(), m.StartDate)
			}
			med.StartDate = &start
		}
		if m.EndDate != "" {
			end, err := parseDate(m.EndDate)
			if err != nil {
				return nil, domain.NewValidationError(fmt.Sprintf("%s[%d].end_date", field, i), err.Error(), m.EndDate)
			}
			med.EndDate = &end
		}
		out = append(out, med)
	}
	return out, nil
}

func toRecords(in []RecordInput, field string) ([]domain.MedicalRecord, error) {
	out := make([]domain.MedicalRecord, 0, len(in))
	for i, r := range in {
		rec, err := toRecord(r, fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func toRecord(r RecordInput, field string) (domain.MedicalRecord, error) {
	rec := domain.MedicalRecord{
		ID:           r.ID,
		Doctor:       r.Doctor,
		VisitType:    r.VisitType,
		Complaint:    r.Complaint,
		Diagnosis:    r.Diagnosis,
		Prescription: r.Prescription,
		Notes:        r.Notes,
	}
	if r.Date != "" {
		date, err := parseDate(r.Date)
		if err != nil {
			return rec, domain.NewValidationError(field+".date", err.Error(), r.Date)
		}
		rec.Date = date
	}
	return rec, nil
}

// parseDate accepts a calendar date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, errors.New("must be YYYY-MM-DD or RFC 3339")
	}
	return t, nil
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// toolError reports err to the client as a failed tool call. Errors outside
// the domain categories are logged and replaced by a generic message.
func (s *LiteServer) toolError(tool string, err error) (*mcp.CallToolResult, any, error) {
	msg := err.Error()
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrUnavailable):
		s.logger.WithError(err).WithField("tool", tool).Warn("Tool call rejected")
	default:
		s.logger.WithError(err).WithField("tool", tool).Error("Tool call failed")
		msg = "internal error"
	}
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}, nil, nil
}
