package kiosk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/config"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

func newTestClient(t *testing.T, handler http.Handler) (*httpClient, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		ServerAddress: strings.TrimPrefix(srv.URL, "http://"),
	}

	client, err := NewHTTPClient(cfg, testLogger())
	require.NoError(t, err)

	return client, srv
}

func TestHealthCheck(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))

	assert.NoError(t, client.HealthCheck(context.Background()))
}

func TestHealthCheckServerDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	cfg := &config.Config{ServerAddress: strings.TrimPrefix(srv.URL, "http://")}
	srv.Close()

	client, err := NewHTTPClient(cfg, testLogger())
	require.NoError(t, err)

	err = client.HealthCheck(context.Background())
	require.Error(t, err)

	// Недоступность сервера — транспортная ошибка, она повторяемая
	var transportErr *feedback.TransportError
	assert.ErrorAs(t, err, &transportErr)
	assert.True(t, feedback.IsRetryable(err))
}

func TestSubmitFeedback(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/feedback", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var req feedback.SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "entry-1", req.EntryID)
		assert.Equal(t, "+79000000001", req.MobileNumber)

		json.NewEncoder(w).Encode(feedback.SubmitResponse{
			Status:    "OK",
			SessionID: "session-1",
		})
	}))

	resp, err := client.SubmitFeedback(context.Background(), feedback.SubmitRequest{
		EntryID:            "entry-1",
		ClientTimestamp:    time.Now(),
		MobileNumber:       "+79000000001",
		ConsultationNumber: 42,
	})
	require.NoError(t, err)
	assert.Equal(t, "session-1", resp.SessionID)
}

func TestSubmitFeedbackRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "validation failed"})
	}))

	_, err := client.SubmitFeedback(context.Background(), feedback.SubmitRequest{EntryID: "entry-1"})
	require.Error(t, err)

	var rejection *feedback.RemoteRejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusUnprocessableEntity, rejection.StatusCode)
	assert.Equal(t, "validation failed", rejection.Message)
}

func TestSubmitFeedbackErrorEnvelope(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// HTTP 200, но сервер сообщает об отказе в теле
		json.NewEncoder(w).Encode(feedback.SubmitResponse{
			Status: "Error",
			Error:  "consultation closed",
		})
	}))

	_, err := client.SubmitFeedback(context.Background(), feedback.SubmitRequest{EntryID: "entry-1"})
	require.Error(t, err)

	var rejection *feedback.RemoteRejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, "consultation closed", rejection.Message)
}

func TestCheckDuplicate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/feedback/duplicate-check", r.URL.Path)

		var req feedback.DuplicateCheckRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 42, req.ConsultationNumber)

		json.NewEncoder(w).Encode(feedback.DuplicateCheckResponse{
			IsDuplicate:      true,
			ExistingID:       "session-7",
			TimeDifferenceMs: 60000,
		})
	}))

	resp, err := client.CheckDuplicate(context.Background(), feedback.DuplicateCheckRequest{
		MobileNumber:       "+79000000001",
		ConsultationNumber: 42,
		SubmittedAt:        time.Now(),
	})
	require.NoError(t, err)
	assert.True(t, resp.IsDuplicate)
	assert.Equal(t, "session-7", resp.ExistingID)
}

func TestDispatchQueueEntry(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/analytics", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "kiosk-7", r.Header.Get("X-Kiosk-Id"))

		body, _ := json.Marshal(map[string]bool{"ok": true})
		w.Write(body)
	}))

	err := client.DispatchQueueEntry(context.Background(), &queue.Entry{
		ID:       "task-1",
		Type:     "analytics",
		Endpoint: "/api/v1/analytics",
		Method:   http.MethodPost,
		Headers:  map[string]string{"X-Kiosk-Id": "kiosk-7"},
		Data:     []byte(`{"event":"screen_view"}`),
	})
	assert.NoError(t, err)
}

func TestDispatchQueueEntryRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	err := client.DispatchQueueEntry(context.Background(), &queue.Entry{
		ID:       "task-1",
		Endpoint: "/api/v1/analytics",
		Method:   http.MethodPost,
	})
	require.Error(t, err)

	var rejection *feedback.RemoteRejectionError
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, http.StatusBadRequest, rejection.StatusCode)
}
