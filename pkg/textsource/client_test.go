package textsource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/health-keeper-mcp-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret", Timeout: 5 * time.Second}, quietLogger())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{}, quietLogger())
	assert.Error(t, err)
}

func TestExtractText_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/extract", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		body, _ := io.ReadAll(file)
		assert.Equal(t, "visit.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.7", string(body))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"Chief complaint: headache"}`))
	})

	text, err := client.ExtractText(context.Background(), "visit.pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "Chief complaint: headache", text)
}

func TestExtractText_UnsupportedType(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	_, err := client.ExtractText(context.Background(), "notes.docx", []byte("x"))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestExtractText_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"client error", http.StatusUnprocessableEntity, `{"error":"unreadable scan"}`, domain.ErrInvalidInput},
		{"server error", http.StatusBadGateway, ``, domain.ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.ExtractText(context.Background(), "scan.png", []byte("x"))
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestExtractText_CircuitOpensAfterFailures(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.ExtractText(ctx, "scan.png", []byte("x"))
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.State())

	_, err := client.ExtractText(ctx, "scan.png", []byte("x"))
	assert.True(t, errors.Is(err, domain.ErrUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExtractText_RejectedInputDoesNotTrip(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	for i := 0; i < 5; i++ {
		_, err := client.ExtractText(context.Background(), "scan.png", []byte("x"))
		require.True(t, errors.Is(err, domain.ErrInvalidInput))
	}
	assert.Equal(t, "closed", client.State())
}

func TestExtractText_RateLimitHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer server.Close()

	client, err := NewClient(Config{BaseURL: server.URL, RateLimit: 0.01}, quietLogger())
	require.NoError(t, err)

	_, err = client.ExtractText(context.Background(), "a.txt", []byte("x"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.ExtractText(ctx, "a.txt", []byte("x"))
	assert.Error(t, err)
}
