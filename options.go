package kumbhwatch

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	listenAddr string
	logger     *slog.Logger
	version    string
	groqAPIKey string
	forwardURL string
	analyzer   Analyzer
}

// WithListenAddr overrides the listen address from config (KUMBH_LISTEN_ADDR).
func WithListenAddr(addr string) Option {
	return func(o *resolvedOptions) { o.listenAddr = addr }
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in /status and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithGroqAPIKey overrides the inference API key from config (KUMBH_GROQ_API_KEY).
// Ignored when WithAnalyzer replaces the built-in analyzer entirely.
func WithGroqAPIKey(key string) Option {
	return func(o *resolvedOptions) { o.groqAPIKey = key }
}

// WithForwardURL overrides the dashboard mirror URL from config (KUMBH_FORWARD_URL).
func WithForwardURL(url string) Option {
	return func(o *resolvedOptions) { o.forwardURL = url }
}

// WithAnalyzer replaces the built-in Groq-backed transcript analyzer.
// Only the last call wins.
func WithAnalyzer(a Analyzer) Option {
	return func(o *resolvedOptions) { o.analyzer = a }
}
