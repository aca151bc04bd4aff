package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pbxwatch/backend/internal/types"
	"github.com/rs/zerolog"
)

type fakeDispatcher struct {
	envelopes []types.Envelope
	err       error
}

func (d *fakeDispatcher) Dispatch(env types.Envelope) error {
	if d.err != nil {
		return d.err
	}
	d.envelopes = append(d.envelopes, env)
	return nil
}

func newTestReceiver(d Dispatcher) *Receiver {
	return NewReceiver(d, zerolog.New(&bytes.Buffer{}))
}

func TestHandleEventDispatchesEnvelope(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	receiver := newTestReceiver(dispatcher)

	data, _ := json.Marshal(types.CallStartedEvent{UniqueID: "1700000000.5", From: "+15551234567"})
	body, _ := json.Marshal(types.Envelope{Type: types.EventCallStarted, Data: data})

	req := httptest.NewRequest(http.MethodPost, "/internal/event", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	receiver.HandleEvent(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if len(dispatcher.envelopes) != 1 {
		t.Fatalf("expected 1 dispatched envelope, got %d", len(dispatcher.envelopes))
	}
	if dispatcher.envelopes[0].Type != types.EventCallStarted {
		t.Errorf("expected call.started, got %s", dispatcher.envelopes[0].Type)
	}
}

func TestHandleEventRejectsNonPost(t *testing.T) {
	receiver := newTestReceiver(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/internal/event", nil)
	rec := httptest.NewRecorder()
	receiver.HandleEvent(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestHandleEventRejectsMalformedBody(t *testing.T) {
	receiver := newTestReceiver(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodPost, "/internal/event", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	receiver.HandleEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandleEventRejectsUnknownType(t *testing.T) {
	receiver := newTestReceiver(&fakeDispatcher{err: errors.New("unknown event type")})

	body, _ := json.Marshal(types.Envelope{Type: "bogus"})
	req := httptest.NewRequest(http.MethodPost, "/internal/event", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	receiver.HandleEvent(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetStats(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	receiver := newTestReceiver(dispatcher)

	data, _ := json.Marshal(types.CallEndedEvent{UniqueID: "1700000000.5"})
	body, _ := json.Marshal(types.Envelope{Type: types.EventCallEnded, Data: data})
	req := httptest.NewRequest(http.MethodPost, "/internal/event", bytes.NewReader(body))
	receiver.HandleEvent(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	receiver.GetStats(rec, httptest.NewRequest(http.MethodGet, "/internal/event/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats["events_received"].(float64) != 1 {
		t.Errorf("expected 1 event received, got %v", stats["events_received"])
	}
}
