// Package kumbhwatch is the public API for embedding the KumbhWatch
// emergency coordination server.
//
// Consumers import this package to construct and run the server without
// forking it:
//
//	app, err := kumbhwatch.New(
//	    kumbhwatch.WithVersion(version),
//	    kumbhwatch.WithLogger(logger),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: kumbhwatch (root)
// imports internal/*, but internal/* never imports kumbhwatch. Public
// types (Turn, Analysis) are standalone structs with no internal imports;
// conversion helpers live here because this is the only file that sees
// both sides of the boundary.
package kumbhwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/MetaSonic001/kumbh-watch-sub000/internal/config"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/dedupe"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/enrich"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/forward"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/hub"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/model"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/ratelimit"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/server"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/store"
	"github.com/MetaSonic001/kumbh-watch-sub000/internal/telemetry"
)

// App is the KumbhWatch server lifecycle. Construct with New(), run with
// Run(). App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	store        *store.Memory
	hub          *hub.Hub
	policy       *dedupe.Policy
	limiter      ratelimit.Limiter
	srv          *server.Server
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New wires all subsystems and returns a ready-to-run App. It does NOT
// start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.listenAddr != "" {
		cfg.ListenAddr = o.listenAddr
	}
	if o.groqAPIKey != "" {
		cfg.GroqAPIKey = o.groqAPIKey
	}
	if o.forwardURL != "" {
		cfg.ForwardURL = o.forwardURL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("kumbhwatch starting", "version", version, "listen_addr", cfg.ListenAddr)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	st := store.NewMemory()

	h := hub.New(logger, st.ActiveCount)
	hub.NewDispatcher(h, st, logger)
	st.OnChange(hub.StoreHook(h))

	// Analyzer: external override, else Groq when a key is set, else nil
	// (heuristic fallback only).
	var analyzer enrich.Analyzer
	switch {
	case o.analyzer != nil:
		analyzer = &analyzerAdapter{a: o.analyzer}
		logger.Info("enrichment: external analyzer")
	case cfg.GroqAPIKey != "":
		analyzer = enrich.NewGroqAnalyzer(cfg.GroqURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.GroqTimeout)
		logger.Info("enrichment: groq", "model", cfg.GroqModel)
	default:
		logger.Info("enrichment: disabled (no KUMBH_GROQ_API_KEY), heuristic fallback only")
	}
	enricher := enrich.NewService(analyzer, logger)

	forwarder := forward.New(cfg.ForwardURL, cfg.ForwardTimeout, logger)
	if forwarder == nil {
		logger.Info("forwarding: disabled (no KUMBH_FORWARD_URL)")
	} else {
		logger.Info("forwarding: enabled", "url", cfg.ForwardURL)
	}

	var limiter ratelimit.Limiter = ratelimit.NoopLimiter{}
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		logger.Info("rate limiting: memory token bucket", "rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		logger.Info("rate limiting: disabled")
	}

	policy := dedupe.New(dedupe.Config{
		Window:         cfg.DedupeWindow,
		MaxRetries:     cfg.DedupeMaxRetries,
		CountTolerance: cfg.DedupeCountTolerance,
	}, logger)

	srv := server.New(server.ServerConfig{
		Store:               st,
		Hub:                 h,
		Enricher:            enricher,
		Dedupe:              policy,
		Forwarder:           forwarder,
		RateLimiter:         limiter,
		Logger:              logger,
		ListenAddr:          cfg.ListenAddr,
		ReadTimeout:         cfg.ReadTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	return &App{
		cfg:          cfg,
		store:        st,
		hub:          h,
		policy:       policy,
		limiter:      limiter,
		srv:          srv,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or a fatal
// server error occurs. On return, Shutdown is called automatically —
// callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return a.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown drains in-flight HTTP requests, closes every live websocket,
// stops the dedupe sweeper, and flushes telemetry.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("kumbhwatch shutting down")

	httpCtx, cancel := context.WithTimeout(ctx, a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.srv.Shutdown(httpCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	a.hub.CloseAll()
	a.policy.Stop()
	if a.limiter != nil {
		_ = a.limiter.Close()
	}
	_ = a.otelShutdown(context.Background())

	a.logger.Info("kumbhwatch stopped")
	return nil
}

// analyzerAdapter wraps a public Analyzer to satisfy enrich.Analyzer.
// It converts internal model types to public types at the boundary.
type analyzerAdapter struct {
	a Analyzer
}

func (ad *analyzerAdapter) Analyze(ctx context.Context, turns []model.Turn, hints model.EmergencyAnalysis) (model.EmergencyAnalysis, error) {
	pubTurns := make([]Turn, len(turns))
	for i, t := range turns {
		pubTurns[i] = Turn{Role: t.Role, Content: t.Content}
	}
	out, err := ad.a.Analyze(ctx, pubTurns, toPublicAnalysis(hints))
	if err != nil {
		return model.EmergencyAnalysis{}, err
	}
	res := model.EmergencyAnalysis{
		Location:          out.Location,
		EmergencyType:     model.EmergencyType(out.EmergencyType),
		Priority:          model.Priority(out.Priority),
		Summary:           out.Summary,
		Title:             out.Title,
		Landmarks:         out.Landmarks,
		PersonDescription: out.PersonDescription,
	}
	res.Normalize()
	return res, nil
}

// toPublicAnalysis converts an internal model.EmergencyAnalysis to the
// public Analysis. Lives here because this is the only file that imports
// both sides of the boundary.
func toPublicAnalysis(a model.EmergencyAnalysis) Analysis {
	return Analysis{
		Location:          a.Location,
		EmergencyType:     string(a.EmergencyType),
		Priority:          string(a.Priority),
		Summary:           a.Summary,
		Title:             a.Title,
		Landmarks:         a.Landmarks,
		PersonDescription: a.PersonDescription,
	}
}
