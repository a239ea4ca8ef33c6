package kumbhwatch

import "context"

// Analyzer turns a conversation transcript into a structured analysis.
// When provided via WithAnalyzer it replaces the built-in Groq-backed
// analyzer; errors are tolerated — the pipeline falls back to keyword
// heuristics whenever an Analyzer fails.
type Analyzer interface {
	Analyze(ctx context.Context, transcript []Turn, hints Analysis) (Analysis, error)
}
