package enrich

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingAnalyzer struct{}

func (failingAnalyzer) Analyze(context.Context, []model.Turn, model.EmergencyAnalysis) (model.EmergencyAnalysis, error) {
	return model.EmergencyAnalysis{}, errors.New("inference exploded")
}

func TestServiceRecoversFromAnalyzerFailure(t *testing.T) {
	svc := NewService(failingAnalyzer{}, discardLogger())

	a := svc.Analyze(context.Background(), []model.Turn{{Role: "user", Content: "help"}}, model.EmergencyAnalysis{})

	assert.True(t, model.ValidPriority(a.Priority))
	assert.True(t, model.ValidEmergencyType(a.EmergencyType))
	assert.NotEmpty(t, a.Summary)
	assert.NotEmpty(t, a.Location)
}

func TestServiceWithoutAnalyzer(t *testing.T) {
	svc := NewService(nil, discardLogger())
	assert.False(t, svc.Enabled())

	a := svc.Analyze(context.Background(), nil, model.EmergencyAnalysis{})
	assert.Equal(t, model.TypeGeneralEmergency, a.EmergencyType)
	assert.Equal(t, model.PriorityModerate, a.Priority)
	assert.Equal(t, model.LocationUnclear, a.Location)
}

func TestAnalyzeRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	svc := NewService(failingAnalyzer{}, discardLogger())
	svc.Analyze(context.Background(), []model.Turn{{Role: "user", Content: "fire near the ghat"}}, model.EmergencyAnalysis{})

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "enrich.Analyze", spans[0].Name())
	// The analyzer failure is recorded on the span before falling back.
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	s := strings.Repeat("न", 100)
	got := truncate(s, 25)

	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len(got), 25+len("..."))
}

func TestFallbackKeywordHeuristics(t *testing.T) {
	tests := []struct {
		content      string
		wantType     model.EmergencyType
		wantPriority model.Priority
	}{
		{"I lost my child near gate 3", model.TypeLostChild, model.PriorityCritical},
		{"someone has collapsed and is bleeding", model.TypeMedical, model.PriorityCritical},
		{"there is smoke coming from the tents", model.TypeFire, model.PriorityCritical},
		{"a man is drowning in the river", model.TypeWater, model.PriorityCritical},
		{"crowd surge at the main ghat", model.TypeCrowd, model.PriorityCritical},
		{"my bag was stolen", model.TypeSecurity, model.PriorityModerate},
		{"hello, can you hear me", model.TypeGeneralEmergency, model.PriorityModerate},
	}

	for _, tt := range tests {
		a := Fallback([]model.Turn{{Role: "user", Content: tt.content}}, model.EmergencyAnalysis{})
		assert.Equal(t, tt.wantType, a.EmergencyType, "content %q", tt.content)
		assert.Equal(t, tt.wantPriority, a.Priority, "content %q", tt.content)
		assert.NotEmpty(t, a.Summary)
	}
}

func TestFallbackHonorsHints(t *testing.T) {
	hints := model.EmergencyAnalysis{
		Location:      "Sector 12",
		EmergencyType: model.TypeCrowd,
		Summary:       "occupancy above threshold",
	}
	a := Fallback(nil, hints)

	assert.Equal(t, "Sector 12", a.Location)
	assert.Equal(t, model.TypeCrowd, a.EmergencyType)
	assert.Equal(t, model.PriorityCritical, a.Priority, "crowd defaults to critical")
	assert.Equal(t, "occupancy above threshold", a.Summary)
}

func TestGroqAnalyzerDecodesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer gsk_test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"` +
			`{\"location\":\"Gate 3\",\"emergency_type\":\"lost_child\",\"priority\":\"critical\",\"summary\":\"child separated from parents\"}` +
			`"}}]}`))
	}))
	defer srv.Close()

	g := NewGroqAnalyzer(srv.URL, "gsk_test", "llama3-8b-8192", 5*time.Second)
	a, err := g.Analyze(context.Background(), []model.Turn{{Role: "user", Content: "lost my child near gate 3"}}, model.EmergencyAnalysis{})
	require.NoError(t, err)

	assert.Equal(t, "Gate 3", a.Location)
	assert.Equal(t, model.TypeLostChild, a.EmergencyType)
	assert.Equal(t, model.PriorityCritical, a.Priority)
}

func TestGroqAnalyzerErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGroqAnalyzer(srv.URL, "gsk_test", "llama3-8b-8192", 5*time.Second)
	_, err := g.Analyze(context.Background(), nil, model.EmergencyAnalysis{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDecodeAnalysisStripsCodeFences(t *testing.T) {
	a, err := decodeAnalysis("```json\n{\"location\":\"Gate 1\",\"emergency_type\":\"medical\",\"priority\":\"critical\",\"summary\":\"x\"}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Gate 1", a.Location)
	assert.Equal(t, model.TypeMedical, a.EmergencyType)
}

func TestDecodeAnalysisRejectsProse(t *testing.T) {
	_, err := decodeAnalysis("Sure! Here is the analysis you asked for.")
	require.Error(t, err)
}

func TestDecodeAnalysisNormalizesOutOfEnumValues(t *testing.T) {
	a, err := decodeAnalysis(`{"location":"","emergency_type":"ALIEN","priority":"high","summary":""}`)
	require.NoError(t, err)
	assert.Equal(t, model.TypeGeneralEmergency, a.EmergencyType)
	assert.Equal(t, model.PriorityCritical, a.Priority)
	assert.Equal(t, model.LocationUnclear, a.Location)
	assert.Equal(t, "analysis unavailable", a.Summary)
}
