package forward

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNilForwarderSkips(t *testing.T) {
	f := New("", time.Second, discardLogger())
	require.Nil(t, f)
	// Send on a nil forwarder must be a safe no-op.
	f.Send(model.EmergencyRecord{ID: "e1"})
}

func TestSendDeliversRecord(t *testing.T) {
	got := make(chan model.EmergencyRecord, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec model.EmergencyRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		got <- rec
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(srv.URL, time.Second, discardLogger())
	f.Send(model.EmergencyRecord{ID: "e1", Status: model.StatusActive})

	select {
	case rec := <-got:
		assert.Equal(t, "e1", rec.ID)
	case <-time.After(3 * time.Second):
		t.Fatal("forwarder never delivered the record")
	}
}

func TestSendRetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(srv.URL, time.Second, discardLogger())
	f.Send(model.EmergencyRecord{ID: "e1"})

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, 5*time.Second, 50*time.Millisecond)
}

func TestSendGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(srv.URL, time.Second, discardLogger())
	f.Send(model.EmergencyRecord{ID: "e1"})

	assert.Eventually(t, func() bool { return calls.Load() == maxAttempts }, 5*time.Second, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, maxAttempts, calls.Load())
}
