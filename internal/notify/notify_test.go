package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Simplici0/estimator/internal/apperr"
)

func sampleMessage() Message {
	return Message{
		To:             "jane@example.com",
		ToName:         "Jane",
		EstimateNumber: "EST-ABC123",
		DocumentURL:    "https://docs.example.com/estimate-est-abc123.xlsx",
		CompanyName:    "Acme Builders",
		Total:          "$3,817.13",
	}
}

func TestMessage_SubjectAndBody(t *testing.T) {
	m := sampleMessage()
	assert.Equal(t, "Your Project Estimate #EST-ABC123", m.Subject())

	body := m.Body()
	assert.Contains(t, body, "Hello Jane,")
	assert.Contains(t, body, "Estimate #: EST-ABC123")
	assert.Contains(t, body, "Total: $3,817.13")
	assert.Contains(t, body, m.DocumentURL)

	m.ToName = ""
	assert.Contains(t, m.Body(), "Hello there,")
}

func TestMessage_Validate(t *testing.T) {
	m := sampleMessage()
	m.To = "not-an-email"
	assert.True(t, apperr.Is(m.Validate(), apperr.TypeInvalidInput))

	m = sampleMessage()
	m.EstimateNumber = ""
	assert.True(t, apperr.Is(m.Validate(), apperr.TypeInvalidInput))
}

func TestEmailNotifier_Sends(t *testing.T) {
	var got emailRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/emails", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1"}`))
	}))
	defer srv.Close()

	n := NewEmailNotifier(EmailConfig{BaseURL: srv.URL, APIKey: "key", From: "bids@example.com"}, nil, zap.NewNop())
	id, err := n.SendEstimate(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, "msg_1", id)
	assert.Equal(t, "Acme Builders <bids@example.com>", got.From)
	assert.Equal(t, []string{"jane@example.com"}, got.To)
	assert.Equal(t, "Your Project Estimate #EST-ABC123", got.Subject)
}

func TestEmailNotifier_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"id":"msg_2"}`))
	}))
	defer srv.Close()

	n := NewEmailNotifier(EmailConfig{BaseURL: srv.URL, MaxElapsed: 2 * time.Second}, nil, zap.NewNop())
	id, err := n.SendEstimate(context.Background(), sampleMessage())
	require.NoError(t, err)
	assert.Equal(t, "msg_2", id)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEmailNotifier_RejectedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"message":"invalid from"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	n := NewEmailNotifier(EmailConfig{BaseURL: srv.URL}, nil, zap.NewNop())
	_, err := n.SendEstimate(context.Background(), sampleMessage())
	assert.True(t, apperr.Is(err, apperr.TypeUpstreamUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLogNotifier(zap.New(core))

	id, err := n.SendEstimate(context.Background(), sampleMessage())
	require.ErrorIs(t, err, ErrNotDelivered)
	assert.Empty(t, id)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "EST-ABC123", logs.All()[0].ContextMap()["estimate"])
}
