package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/telemetry"
)

// Service wraps an Analyzer and guarantees a total result: every call
// returns a structurally valid analysis, never an error. A nil analyzer
// (no credentials configured) goes straight to the local path.
type Service struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewService creates the enrichment service. analyzer may be nil.
func NewService(analyzer Analyzer, logger *slog.Logger) *Service {
	return &Service{analyzer: analyzer, logger: logger}
}

// Enabled reports whether an external analyzer is configured.
func (s *Service) Enabled() bool { return s.analyzer != nil }

// Analyze produces an analysis for the transcript. Inference failures are
// logged and recovered into the heuristic fallback; they never propagate.
func (s *Service) Analyze(ctx context.Context, turns []model.Turn, hints model.EmergencyAnalysis) model.EmergencyAnalysis {
	ctx, span := telemetry.Tracer("kumbhwatch/enrich").Start(ctx, "enrich.Analyze")
	defer span.End()

	if s.analyzer != nil {
		analysis, err := s.analyzer.Analyze(ctx, turns, hints)
		if err == nil {
			analysis.Normalize()
			span.SetAttributes(attribute.String("enrich.source", "analyzer"))
			return analysis
		}
		span.RecordError(err)
		s.logger.Warn("enrichment failed, using fallback analysis", "error", err)
	}
	span.SetAttributes(attribute.String("enrich.source", "fallback"))
	return Fallback(turns, hints)
}

// keywordRule maps transcript phrases to a classification.
type keywordRule struct {
	phrases  []string
	kind     model.EmergencyType
	priority model.Priority
}

var keywordRules = []keywordRule{
	{[]string{"child lost", "lost my child", "kid lost", "lost kid", "missing child", "can't find my son", "can't find my daughter"}, model.TypeLostChild, model.PriorityCritical},
	{[]string{"lost my", "missing person", "can't find"}, model.TypeLostAdult, model.PriorityModerate},
	{[]string{"medical", "injured", "unconscious", "heart", "bleeding", "ambulance", "collapsed"}, model.TypeMedical, model.PriorityCritical},
	{[]string{"fire", "smoke", "burning"}, model.TypeFire, model.PriorityCritical},
	{[]string{"drowning", "river", "water emergency"}, model.TypeWater, model.PriorityCritical},
	{[]string{"stampede", "crush", "crowd surge", "too crowded"}, model.TypeCrowd, model.PriorityCritical},
	{[]string{"theft", "stolen", "fight", "assault", "suspicious"}, model.TypeSecurity, model.PriorityModerate},
}

// Fallback derives a best-effort analysis with no external inference.
// Keyword heuristics over the transcript run first; producer hints fill in
// what the heuristics could not. The result is always normalized.
func Fallback(turns []model.Turn, hints model.EmergencyAnalysis) model.EmergencyAnalysis {
	a := hints

	var b strings.Builder
	for _, t := range turns {
		b.WriteString(strings.ToLower(t.Content))
		b.WriteByte(' ')
	}
	transcript := b.String()

	if a.EmergencyType == "" && transcript != "" {
		for _, rule := range keywordRules {
			if matchAny(transcript, rule.phrases) {
				a.EmergencyType = rule.kind
				if a.Priority == "" {
					a.Priority = rule.priority
				}
				break
			}
		}
	}
	if a.Priority == "" && a.EmergencyType != "" {
		a.Priority = model.DefaultPriority(a.EmergencyType)
	}
	if a.Summary == "" {
		if last := lastUserTurn(turns); last != "" {
			a.Summary = fmt.Sprintf("reported: %s", truncate(last, 200))
		}
	}

	a.Normalize()
	return a
}

func matchAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func lastUserTurn(turns []model.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" && strings.TrimSpace(turns[i].Content) != "" {
			return strings.TrimSpace(turns[i].Content)
		}
	}
	return ""
}

// truncate cuts s to at most n bytes, backing up to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
