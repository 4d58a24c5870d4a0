// Package worker provides the HTTP and gRPC surface of attune.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/soheilhy/cmux"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/thebtf/attune/internal/adaptive"
	"github.com/thebtf/attune/internal/config"
	"github.com/thebtf/attune/internal/db"
	"github.com/thebtf/attune/internal/genai"
	"github.com/thebtf/attune/internal/session"
	"github.com/thebtf/attune/internal/settings"
	"github.com/thebtf/attune/internal/simulator"
	"github.com/thebtf/attune/internal/soundscape"
	"github.com/thebtf/attune/internal/storage"
	"github.com/thebtf/attune/internal/watcher"
	"github.com/thebtf/attune/internal/worker/sse"
	"github.com/thebtf/attune/pkg/models"
)

// grpcServiceName is the health-check service name reported over gRPC.
const grpcServiceName = "attune.Worker"

// Service wires the adaptive loop, session controller and stores behind HTTP.
type Service struct {
	startTime       time.Time
	ctx             context.Context
	config          *config.Config
	store           *storage.Store
	catalog         *soundscape.Registry
	loop            *adaptive.Loop
	controller      *session.Controller
	settings        *settings.Manager
	sseBroadcaster  *sse.Broadcaster
	simulator       *simulator.Simulator
	settingsWatcher *watcher.Watcher
	router          *chi.Mux
	server          *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	telemetry       *telemetry
	cancel          context.CancelFunc
	now             func() time.Time
	version         string
	unsubscribe     func()
	// fileSettings is the language and theme last read from the settings file.
	fileSettings    settings.Settings
	fileMu          sync.Mutex
	wg              sync.WaitGroup
	ready           atomic.Bool
}

// NewService opens the configured backend and builds a Service.
func NewService(version string, cfg *config.Config) (*Service, error) {
	catalog := soundscape.Default()
	if cfg.SoundscapeCatalog != "" {
		loaded, err := soundscape.Load(cfg.SoundscapeCatalog)
		if err != nil {
			return nil, fmt.Errorf("load soundscape catalog: %w", err)
		}
		catalog = loaded
	}

	recommender, err := newRecommender(cfg, catalog)
	if err != nil {
		return nil, err
	}

	kv, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}

	svc, err := build(version, cfg, kv, catalog, recommender, adaptive.SystemClock{})
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	otel.SetMeterProvider(svc.telemetry.provider)
	return svc, nil
}

// newRecommender returns the remote client when an API key is set and the
// offline recommender otherwise.
func newRecommender(cfg *config.Config, catalog *soundscape.Registry) (adaptive.Recommender, error) {
	if cfg.APIKey == "" {
		log.Warn().Msg("No API key configured, using offline recommendations")
		return genai.NewStatic(catalog), nil
	}
	client, err := genai.NewClient(genai.Config{
		Catalog:          catalog,
		BaseURL:          cfg.GenAIBaseURL,
		Model:            cfg.Model,
		APIKey:           cfg.APIKey,
		NotesTokenBudget: cfg.PromptTokenBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("create recommendation client: %w", err)
	}
	return client, nil
}

// build assembles a Service over an opened backend.
func build(version string, cfg *config.Config, kv storage.KV, catalog *soundscape.Registry, rec adaptive.Recommender, clock adaptive.Clock) (*Service, error) {
	tel, err := newTelemetry()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	store := storage.NewStore(kv, cfg.UserIdentity)

	defaults := settings.Settings{Language: cfg.DefaultLanguage, Theme: cfg.DefaultTheme}
	settingsDoc := storage.OpenDocument(store, storage.KindSettings, func() settings.Settings { return defaults })
	settingsMgr := settings.NewManager(ctx, settingsDoc, defaults)

	loop := adaptive.New(adaptive.Options{
		Recommender:    rec,
		Clock:          clock,
		Locale:         settingsMgr.Language,
		Preferences:    store.Preferences.Get,
		Debounce:       cfg.Debounce(),
		RequestTimeout: cfg.RequestTimeout(),
		MeterProvider:  tel.provider,
	})

	svc := &Service{
		version:        version,
		config:         cfg,
		store:          store,
		catalog:        catalog,
		loop:           loop,
		settings:       settingsMgr,
		sseBroadcaster: sse.NewBroadcaster(),
		router:         chi.NewRouter(),
		health:         health.NewServer(),
		telemetry:      tel,
		fileSettings:   defaults,
		ctx:            ctx,
		cancel:         cancel,
		startTime:      time.Now(),
		now:            clock.Now,
	}
	svc.controller = session.New(session.Options{
		Loop:               loop,
		History:            store.History,
		Now:                clock.Now,
		ArchivePlaceholder: cfg.ArchivePlaceholder,
	})
	if cfg.SimulatorEnabled {
		svc.simulator = simulator.New(loop, cfg.SimulatorInterval(), uint64(time.Now().UnixNano()))
	}

	svc.wireEvents()
	svc.setupRoutes()
	return svc, nil
}

// wireEvents forwards loop, session and settings changes to SSE clients.
func (s *Service) wireEvents() {
	s.sseBroadcaster.Snapshot = func() sse.Event {
		return sse.Event{Type: sse.EventState, Data: newStateResponse(s.loop.State())}
	}
	s.unsubscribe = s.loop.Subscribe(func(st adaptive.State) {
		s.sseBroadcaster.Publish(sse.EventState, newStateResponse(st))
	})
	s.controller.SetOnSessionStarted(func(activity string) {
		s.sseBroadcaster.Publish(sse.EventSessionStarted, map[string]string{"activity": activity})
	})
	s.controller.SetOnSessionStopped(func(rec *models.SessionRecord) {
		s.sseBroadcaster.Publish(sse.EventSessionStopped, map[string]any{"record": rec})
		if rec != nil {
			s.sseBroadcaster.Publish(sse.EventHistory, map[string]int{"count": s.store.History.Len(s.ctx)})
		}
	})
	s.settings.OnChange(func(st settings.Settings) {
		s.sseBroadcaster.Publish(sse.EventSettings, st)
	})
}

// Start listens on the configured address and serves until ctx is done or
// Shutdown is called.
func (s *Service) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.WorkerHost, strconv.Itoa(s.config.WorkerPort))
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Str("version", s.version).Msg("Worker listening")
	return s.Serve(ctx, lis)
}

// Serve multiplexes HTTP/1 and gRPC on lis.
func (s *Service) Serve(ctx context.Context, lis net.Listener) error {
	s.wg.Add(1)
	defer s.wg.Done()
	s.startBackground()

	mux := cmux.New(lis)
	grpcLis := mux.MatchWithWriters(cmux.HTTP2MatchHeaderFieldSendSettings("content-type", "application/grpc"))
	httpLis := mux.Match(cmux.Any())

	s.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(s.grpcServer, s.health)
	reflection.Register(s.grpcServer)

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.health.SetServingStatus(grpcServiceName, healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.ready.Store(true)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.grpcServer.Serve(grpcLis); err != nil && !isClosed(err) && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.server.Serve(httpLis); err != nil && !isClosed(err) && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := mux.Serve(); err != nil && !isClosed(err) {
			return fmt.Errorf("cmux serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-s.ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		s.stopServers(shutdownCtx)
		mux.Close()
		return nil
	})

	return g.Wait()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, cmux.ErrListenerClosed) || errors.Is(err, cmux.ErrServerClosed)
}

// startBackground launches the simulator and settings watcher.
func (s *Service) startBackground() {
	if s.simulator != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.simulator.Run(s.ctx)
		}()
	}

	w, err := watcher.New(config.SettingsPath(), s.reloadSettings)
	if err != nil {
		log.Warn().Err(err).Msg("Settings watcher unavailable")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Str("path", config.SettingsPath()).Msg("Settings watcher not started")
		return
	}
	s.settingsWatcher = w
}

// reloadSettings applies the language or theme from a changed settings file.
// Only fields that differ from the previous read are applied, so an edit to
// an unrelated key keeps the user's stored choice.
func (s *Service) reloadSettings() {
	cfg, err := config.Reload()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to reload settings file")
		return
	}
	fromFile := settings.Settings{Language: cfg.DefaultLanguage, Theme: cfg.DefaultTheme}

	s.fileMu.Lock()
	prev := s.fileSettings
	s.fileSettings = fromFile
	s.fileMu.Unlock()

	var changed settings.Settings
	if fromFile.Language != prev.Language {
		changed.Language = fromFile.Language
	}
	if fromFile.Theme != prev.Theme {
		changed.Theme = fromFile.Theme
	}
	if changed == (settings.Settings{}) {
		log.Debug().Msg("Settings file changed without language or theme edits")
		return
	}
	if _, err := s.settings.Update(s.ctx, changed); err != nil {
		log.Warn().Err(err).Msg("Ignoring invalid settings from file")
	}
}

func (s *Service) stopServers(ctx context.Context) {
	s.ready.Store(false)
	s.health.Shutdown()
	s.sseBroadcaster.CloseAll()
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown did not complete")
		}
	}
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// Shutdown stops serving, ends background work and closes the backend.
// Serve returns once its listeners are closed.
func (s *Service) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Err(ctx.Err()).Msg("Shutdown timed out waiting for listeners")
	}

	if s.settingsWatcher != nil {
		if err := s.settingsWatcher.Stop(); err != nil {
			log.Warn().Err(err).Msg("Settings watcher stop failed")
		}
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.loop.Close()
	if err := s.telemetry.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("Meter provider shutdown failed")
	}

	log.Info().Dur("uptime", time.Since(s.startTime)).Msg("Worker stopped")
	return s.store.Close()
}
