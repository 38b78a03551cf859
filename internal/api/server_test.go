package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-keeper-mcp-server/internal/domain"
	"github.com/health-keeper-mcp-server/internal/review"
	"github.com/health-keeper-mcp-server/internal/service"
)

var testNow = time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

type stubPatients struct {
	meds    []domain.Medication
	records []domain.MedicalRecord
}

func (s *stubPatients) CurrentMedications(_ context.Context, patientID string) ([]domain.Medication, error) {
	if patientID != "p1" {
		return nil, domain.ErrNotFound
	}
	return s.meds, nil
}

func (s *stubPatients) RecentRecords(_ context.Context, _ string, _ int) ([]domain.MedicalRecord, error) {
	return s.records, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) ExtractText(_ context.Context, _ string, _ []byte) (string, error) {
	return s.text, s.err
}

type failingHealth struct{}

func (failingHealth) Health(context.Context) error { return errors.New("connection refused") }

func testConfig() *domain.Config {
	return &domain.Config{
		App:     domain.AppConfig{Name: "Family Health Keeper", Version: "1.0.0", APIPrefix: "/api/v1"},
		Server:  domain.ServerConfig{RequestTimeout: 5 * time.Second},
		Logging: domain.LoggingConfig{Level: "info"},
		Upload:  domain.UploadConfig{MaxFileSize: 1024},
	}
}

type testEnv struct {
	handler http.Handler
	reviews *review.SQLiteStore
}

func newTestEnv(t *testing.T, svcOpts []service.Option, opts ...Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := review.NewSQLiteStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svcOpts = append([]service.Option{service.WithClock(func() time.Time { return testNow })}, svcOpts...)
	svc := service.NewClinicalService(logger, svcOpts...)

	opts = append([]Option{WithReviewStore(store), WithClock(func() time.Time { return testNow })}, opts...)
	server := NewServer(testConfig(), svc, logger, opts...)
	return &testEnv{handler: server.Handler(), reviews: store}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Family Health Keeper", body["service"])
	assert.Equal(t, "1.0.0", body["version"])
}

func TestHealth_DatabaseDown(t *testing.T) {
	env := newTestEnv(t, nil, WithDatabaseHealth(failingHealth{}))

	w := env.request(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "degraded")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.request(t, http.MethodGet, "/health", nil)

	w := env.request(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_request_total")
}

func TestParseEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodPost, "/api/v1/parse", ParseRequest{
		Text: "Complaint: severe chest pain\nRx: Aspirin 325mg - once",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result service.ParseResult
	decode(t, w, &result)
	assert.Equal(t, domain.HIGH, result.Data.Urgency)
	require.Len(t, result.Data.Medications, 1)
	assert.Equal(t, "Aspirin", result.Data.Medications[0].Name)
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestParseEndpoint_BadBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/parse", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"field":"body"`)
}

func TestOverviewEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodPost, "/api/v1/overview", OverviewRequest{
		Text:   "Diagnosis: seasonal allergy\nFollow-up: 2 weeks",
		Record: domain.MedicalRecord{Date: testNow, Doctor: "Dr. Iyer"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var overview domain.VisitOverview
	decode(t, w, &overview)
	assert.Contains(t, overview.Summary, "Dr. Iyer")
	assert.Equal(t, "2 weeks", overview.FollowUpPlan)
}

func TestReconcileEndpoint_DefaultsNowToServerClock(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodPost, "/api/v1/reconcile", ReconcileRequest{
		Current: []domain.Medication{{ID: "m1", Name: "Warfarin", Strength: "5mg", Dosage: "1 tablet", Frequency: "once daily"}},
		Records: []domain.MedicalRecord{{ID: "r1", Date: testNow.Add(-time.Hour), Prescription: "Ibuprofen 400mg - twice daily"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var result service.ReconcileResult
	decode(t, w, &result)
	assert.Equal(t, 1, result.Result.Summary.Added)
	assert.Equal(t, 1, result.Result.Summary.Discontinued)
	require.Len(t, result.Result.DiscontinuedMedications, 1)
	require.NotNil(t, result.Result.DiscontinuedMedications[0].EndDate)
	assert.True(t, result.Result.DiscontinuedMedications[0].EndDate.Equal(testNow))
	assert.Len(t, result.Interactions.Interactions, 1)
}

func TestInteractionsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodPost, "/api/v1/interactions", InteractionsRequest{
		Medications: []domain.Medication{{Name: "Lisinopril"}, {Name: "Spironolactone"}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var report domain.InteractionReport
	decode(t, w, &report)
	require.Len(t, report.Interactions, 1)
	assert.Contains(t, report.Interactions[0], "hyperkalemia")
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestDocumentTextEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		opts       []service.Option
		content    []byte
		wantStatus int
	}{
		{"extracts", []service.Option{service.WithTextExtractor(stubExtractor{text: "Diagnosis: migraine"})}, []byte("%PDF"), http.StatusOK},
		{"not configured", nil, []byte("%PDF"), http.StatusServiceUnavailable},
		{"too large", []service.Option{service.WithTextExtractor(stubExtractor{})}, bytes.Repeat([]byte("a"), 2048), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.opts)
			body, contentType := multipartUpload(t, "visit.pdf", tt.content)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/text", body)
			req.Header.Set("Content-Type", contentType)
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestPatientReconcileEndpoint(t *testing.T) {
	patients := &stubPatients{
		meds: []domain.Medication{{ID: "m1", Name: "Metformin", Strength: "500mg", Dosage: "1 tablet", Frequency: "twice daily"}},
		records: []domain.MedicalRecord{
			{ID: "r1", Date: testNow.Add(-24 * time.Hour), Prescription: "Metformin 1000mg - twice daily"},
		},
	}
	env := newTestEnv(t, []service.Option{service.WithPatientRepository(patients)})

	w := env.request(t, http.MethodGet, "/api/v1/patients/p1/reconcile", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var result service.ReconcileResult
	decode(t, w, &result)
	assert.Equal(t, 1, result.Result.Summary.Modified)

	assert.Equal(t, http.StatusNotFound, env.request(t, http.MethodGet, "/api/v1/patients/p9/reconcile", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.request(t, http.MethodGet, "/api/v1/patients/p1/reconcile?now=yesterday", nil).Code)
}

func TestReviewEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.request(t, http.MethodPost, "/api/v1/reviews", review.Decision{
		PatientID:      "p1",
		MedicationName: "Ibuprofen",
		ChangeType:     domain.ADDED,
		Status:         review.StatusRejected,
		Reviewer:       "dr.mehta",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var saved review.Decision
	decode(t, w, &saved)
	assert.NotZero(t, saved.ID)
	assert.Equal(t, "ibuprofen", saved.NormalizedName)

	w = env.request(t, http.MethodGet, "/api/v1/reviews?patient_id=p1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Decisions []review.Decision `json:"decisions"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Decisions, 1)

	idPath := "/api/v1/reviews/" + jsonNumber(saved.ID)
	assert.Equal(t, http.StatusOK, env.request(t, http.MethodGet, idPath, nil).Code)
	assert.Equal(t, http.StatusNoContent, env.request(t, http.MethodDelete, idPath, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.request(t, http.MethodGet, idPath, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.request(t, http.MethodGet, "/api/v1/reviews/abc", nil).Code)

	w = env.request(t, http.MethodPost, "/api/v1/reviews", review.Decision{PatientID: "p1", MedicationName: "x", ChangeType: domain.ADDED, Status: "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingReviewsEndpoint(t *testing.T) {
	patients := &stubPatients{
		meds: []domain.Medication{{ID: "m1", Name: "Warfarin", Strength: "5mg"}},
		records: []domain.MedicalRecord{
			{ID: "r1", Date: testNow.Add(-time.Hour), Prescription: "Ibuprofen 400mg - twice daily\nPantoprazole 40mg - once daily"},
		},
	}
	env := newTestEnv(t, []service.Option{service.WithPatientRepository(patients)})

	require.NoError(t, env.reviews.Save(context.Background(), &review.Decision{
		PatientID:      "p1",
		MedicationName: "Ibuprofen",
		ChangeType:     domain.ADDED,
		Status:         review.StatusApproved,
	}))

	w := env.request(t, http.MethodGet, "/api/v1/reviews/pending?patient_id=p1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Pending []domain.MedicationChange `json:"pending"`
	}
	decode(t, w, &body)

	names := make([]string, 0, len(body.Pending))
	for _, c := range body.Pending {
		names = append(names, c.Medication.Name)
	}
	assert.ElementsMatch(t, []string{"Pantoprazole", "Warfarin"}, names)
}

func TestReviewEndpoints_NoStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	server := NewServer(testConfig(), service.NewClinicalService(logger), logger)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func jsonNumber(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}
