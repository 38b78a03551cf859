package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/health-keeper-mcp-server/internal/cache"
	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/interaction"
	"github.com/health-keeper-mcp-server/internal/metrics"
	"github.com/health-keeper-mcp-server/internal/parser"
	"github.com/health-keeper-mcp-server/internal/reconcile"
)

// MaxNoteLength bounds the text accepted for a single parse.
const MaxNoteLength = 1 << 20

// DefaultRecordLimit is how many recent records are loaded per patient.
const DefaultRecordLimit = 50

// ParseResult is the outcome of parsing one visit note
type ParseResult struct {
	Data           *domain.ParsedMedicalData `json:"data"`
	Report         *domain.ParseReport       `json:"report"`
	RedFlags       []string                  `json:"red_flags"`
	Cached         bool                      `json:"cached"`
	ProcessingTime time.Duration             `json:"processing_time"`
}

// ReconcileParams is the input of a reconciliation request
type ReconcileParams struct {
	Current []domain.Medication    `json:"current"`
	Records []domain.MedicalRecord `json:"records"`
	History []domain.MedicalRecord `json:"history,omitempty"`
	Now     time.Time              `json:"now"`
}

// ReconcileResult bundles a reconciliation with its summary sentence and the
// interaction check of the medications involved
type ReconcileResult struct {
	Result         *domain.ReconciliationResult `json:"result"`
	Summary        string                       `json:"summary"`
	Interactions   domain.InteractionReport     `json:"interactions"`
	ProcessingTime time.Duration                `json:"processing_time"`
}

// DocumentResult is the outcome of extracting and parsing an uploaded document
type DocumentResult struct {
	Text  string       `json:"text"`
	Parse *ParseResult `json:"parse"`
}

// ClinicalService orchestrates the parser, reconciliation engine and
// interaction checker, adding logging, caching and metrics.
type ClinicalService struct {
	logger      *logrus.Logger
	engine      *reconcile.Engine
	checker     *interaction.Checker
	cache       cache.Cache
	extractor   domain.TextExtractor
	patients    domain.PatientRepository
	clock       func() time.Time
	recordLimit int
}

// Option configures a ClinicalService
type Option func(*ClinicalService)

// WithCache enables parse-result caching
func WithCache(c cache.Cache) Option {
	return func(s *ClinicalService) {
		s.cache = c
	}
}

// WithTextExtractor sets the document-to-text collaborator
func WithTextExtractor(e domain.TextExtractor) Option {
	return func(s *ClinicalService) {
		s.extractor = e
	}
}

// WithPatientRepository sets the storage collaborator
func WithPatientRepository(r domain.PatientRepository) Option {
	return func(s *ClinicalService) {
		s.patients = r
	}
}

// WithClock overrides the clock used for parse start dates and default
// evaluation times
func WithClock(now func() time.Time) Option {
	return func(s *ClinicalService) {
		s.clock = now
	}
}

// WithEngine replaces the reconciliation engine
func WithEngine(e *reconcile.Engine) Option {
	return func(s *ClinicalService) {
		s.engine = e
	}
}

// WithRecordLimit bounds the records loaded per patient
func WithRecordLimit(n int) Option {
	return func(s *ClinicalService) {
		if n > 0 {
			s.recordLimit = n
		}
	}
}

// NewClinicalService creates a new clinical service
func NewClinicalService(logger *logrus.Logger, opts ...Option) *ClinicalService {
	s := &ClinicalService{
		logger:      logger,
		engine:      reconcile.NewEngine(),
		checker:     interaction.NewChecker(),
		clock:       time.Now,
		recordLimit: DefaultRecordLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseNote parses a visit note. Empty text is not an error; it yields empty
// fields.
func (s *ClinicalService) ParseNote(ctx context.Context, text string) (*ParseResult, error) {
	if len(text) > MaxNoteLength {
		return nil, domain.NewValidationError("text", fmt.Sprintf("exceeds %d bytes", MaxNoteLength), len(text))
	}

	startTime := time.Now()
	now := s.clock()
	key := cache.Key("parse", now.Format("2006-01-02"), text)

	if cached := s.cachedParse(ctx, key); cached != nil {
		cached.Cached = true
		cached.ProcessingTime = time.Since(startTime)
		return cached, nil
	}

	data, report := parser.New(parser.WithClock(func() time.Time { return now })).Parse(text)
	result := &ParseResult{
		Data:           data,
		Report:         report,
		RedFlags:       parser.DetectRedFlags(data),
		ProcessingTime: time.Since(startTime),
	}

	metrics.NotesParsed.WithLabelValues(data.Urgency.String()).Inc()
	metrics.DroppedFragments.Add(float64(len(report.DroppedFragments)))

	s.logger.WithFields(logrus.Fields{
		"complaints":        len(data.ChiefComplaints),
		"diagnoses":         len(data.Diagnoses),
		"medications":       len(data.Medications),
		"dropped_fragments": len(report.DroppedFragments),
		"urgency":           data.Urgency,
		"red_flags":         len(result.RedFlags),
		"processing_time":   result.ProcessingTime,
	}).Info("Visit note parsed")

	s.storeParse(ctx, key, result)
	return result, nil
}

// Overview parses text and derives a VisitOverview for the given record.
func (s *ClinicalService) Overview(ctx context.Context, text string, record domain.MedicalRecord) (*domain.VisitOverview, error) {
	parsed, err := s.ParseNote(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("parsing visit note: %w", err)
	}
	return parser.BuildOverview(parsed.Data, record), nil
}

// Reconcile diffs current medications against the records and checks the
// combined list for interactions. A zero Now is rejected.
func (s *ClinicalService) Reconcile(ctx context.Context, params *ReconcileParams) (*ReconcileResult, error) {
	if params == nil {
		return nil, domain.NewValidationError("params", "reconciliation parameters are required", nil)
	}
	if params.Now.IsZero() {
		return nil, domain.NewValidationError("now", "evaluation time is required", nil)
	}

	startTime := time.Now()
	result := s.engine.Reconcile(reconcile.Input{
		Current: params.Current,
		Records: params.Records,
		History: params.History,
		Now:     params.Now,
	})

	out := &ReconcileResult{
		Result:         result,
		Summary:        reconcile.GenerateSummary(result),
		Interactions:   s.checker.Check(mergeMedications(params.Current, result.CurrentMedications)),
		ProcessingTime: time.Since(startTime),
	}

	for _, c := range result.Changes {
		metrics.MedicationChanges.WithLabelValues(c.ChangeType.String()).Inc()
	}
	metrics.DroppedFragments.Add(float64(len(result.DroppedFragments)))

	s.logger.WithFields(logrus.Fields{
		"current":            len(params.Current),
		"records":            len(params.Records),
		"history":            len(params.History),
		"added":              result.Summary.Added,
		"modified":           result.Summary.Modified,
		"discontinued":       result.Summary.Discontinued,
		"continued":          result.Summary.Continued,
		"requires_attention": len(result.RequiresAttention),
		"interactions":       len(out.Interactions.Interactions),
		"processing_time":    out.ProcessingTime,
	}).Info("Medication reconciliation completed")

	return out, nil
}

// CheckInteractions runs the interaction checker over meds.
func (s *ClinicalService) CheckInteractions(_ context.Context, meds []domain.Medication) domain.InteractionReport {
	report := s.checker.Check(meds)
	s.logger.WithFields(logrus.Fields{
		"medications":  len(meds),
		"interactions": len(report.Interactions),
		"warnings":     len(report.Warnings),
	}).Debug("Interaction check completed")
	return report
}

// ExtractDocument converts an uploaded document to text through the external
// extractor and parses the result.
func (s *ClinicalService) ExtractDocument(ctx context.Context, filename string, content []byte) (*DocumentResult, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("text extraction is not configured: %w", domain.ErrUnavailable)
	}
	if len(content) == 0 {
		return nil, domain.NewValidationError("file", "document is empty", filename)
	}

	text, err := s.extractor.ExtractText(ctx, filename, content)
	if err != nil {
		s.logger.WithError(err).WithField("filename", filename).Error("Document text extraction failed")
		return nil, fmt.Errorf("extracting document text: %w", err)
	}

	parsed, err := s.ParseNote(ctx, text)
	if err != nil {
		return nil, err
	}
	return &DocumentResult{Text: text, Parse: parsed}, nil
}

// ReconcilePatient loads a patient's medications and recent records from the
// repository. Records from the most recent visit day form the latest set; the
// rest feed the lookback only.
func (s *ClinicalService) ReconcilePatient(ctx context.Context, patientID string, now time.Time) (*ReconcileResult, error) {
	if s.patients == nil {
		return nil, fmt.Errorf("patient repository is not configured: %w", domain.ErrUnavailable)
	}
	if patientID == "" {
		return nil, domain.NewValidationError("patient_id", "patient ID is required", patientID)
	}
	if now.IsZero() {
		now = s.clock()
	}

	current, err := s.patients.CurrentMedications(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading current medications: %w", err)
	}
	records, err := s.patients.RecentRecords(ctx, patientID, s.recordLimit)
	if err != nil {
		return nil, fmt.Errorf("loading recent records: %w", err)
	}

	latest, history := SplitLatestVisit(records)
	return s.Reconcile(ctx, &ReconcileParams{
		Current: current,
		Records: latest,
		History: history,
		Now:     now,
	})
}

// SplitLatestVisit separates the records dated on the most recent visit day
// from older ones. Input order is preserved within each group.
func SplitLatestVisit(records []domain.MedicalRecord) (latest, history []domain.MedicalRecord) {
	if len(records) == 0 {
		return nil, nil
	}

	sorted := append([]domain.MedicalRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.After(sorted[j].Date) })
	y, m, d := sorted[0].Date.Date()

	for _, rec := range records {
		ry, rm, rd := rec.Date.Date()
		if ry == y && rm == m && rd == d {
			latest = append(latest, rec)
		} else {
			history = append(history, rec)
		}
	}
	return latest, history
}

// mergeMedications unions two lists by normalized name, keeping the first
// occurrence.
func mergeMedications(lists ...[]domain.Medication) []domain.Medication {
	var out []domain.Medication
	seen := make(map[string]bool)
	for _, list := range lists {
		for _, med := range list {
			key := reconcile.NormalizeName(med.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, med)
		}
	}
	return out
}

func (s *ClinicalService) cachedParse(ctx context.Context, key string) *ParseResult {
	if s.cache == nil {
		return nil
	}

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WithError(err).Warn("Parse cache read failed")
	}
	if !ok || err != nil {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	var result ParseResult
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.WithError(err).Warn("Discarding corrupt parse cache entry")
		_ = s.cache.Delete(ctx, key)
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil
	}

	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &result
}

func (s *ClinicalService) storeParse(ctx context.Context, key string, result *ParseResult) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to marshal parse result for cache")
		return
	}
	if err := s.cache.Set(ctx, key, raw); err != nil {
		s.logger.WithError(err).Warn("Parse cache write failed")
	}
}
