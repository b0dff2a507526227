package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/thejerf/suture/v4"

	"nightcircle/internal/config"
	"nightcircle/internal/db"
	"nightcircle/internal/geo"
	"nightcircle/internal/handlers"
	"nightcircle/internal/logging"
	"nightcircle/internal/nightmode"
	"nightcircle/internal/realtime"
	"nightcircle/internal/services"
	"nightcircle/internal/store"
	"nightcircle/internal/voice"
	"nightcircle/internal/worker"
)

const (
	bodyLimit       = 32 << 20
	shutdownTimeout = 10 * time.Second
)

// Server owns every long-lived component of the process.
type Server struct {
	cfg   *config.Config
	store store.Store
	cache store.PresenceCache
	hub   *realtime.Hub
	app   *fiber.App

	auth     *services.AuthService
	users    *services.UserService
	presence *services.PresenceService
	notify   *services.NotificationService
	chat     *services.ChatService
	geo      *services.GeoService
	statuses *services.StatusService
	night    *services.NightService
	reaper   *worker.Reaper

	closers []func()
}

// New connects the backing stores and builds the HTTP application.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	return newServer(ctx, cfg, time.Now)
}

func newServer(ctx context.Context, cfg *config.Config, now func() time.Time) (*Server, error) {
	s := &Server{cfg: cfg, hub: realtime.NewHub()}

	if err := s.openStore(ctx); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.openCache(ctx); err != nil {
		s.Close()
		return nil, err
	}

	var geocoder geo.Geocoder
	if !cfg.Geocoder.Disabled {
		geocoder = geo.NewHTTPGeocoder(geo.HTTPGeocoderConfig{
			NominatimURL:     cfg.Geocoder.NominatimURL,
			UserAgent:        cfg.Geocoder.UserAgent,
			GeoNamesURL:      cfg.Geocoder.GeoNamesURL,
			GeoNamesUsername: cfg.Geocoder.GeoNamesUsername,
			Timeout:          cfg.Geocoder.Timeout,
		})
	}
	resolver := geo.NewResolver(geocoder, cfg.Geocoder.Timeout)

	st := s.store
	s.auth = services.NewAuthService(st, cfg.JWTSecret)
	s.users = services.NewUserService(st, s.hub)
	s.presence = services.NewPresenceService(s.hub, st, st, s.cache)
	s.notify = services.NewNotificationService(st, st, s.hub)
	s.chat = services.NewChatService(st, st, st, s.hub, s.notify)
	if !cfg.Voice.Disabled {
		s.chat.WithVoice(voice.New(voice.Config{
			Endpoint:  cfg.Voice.Endpoint,
			Language:  cfg.Voice.Language,
			UserAgent: cfg.Geocoder.UserAgent,
			Timeout:   cfg.Voice.Timeout,
			UploadDir: cfg.UploadDir,
			BaseURL:   cfg.BaseURL,
		}))
	}
	s.geo = services.NewGeoService(st, st, resolver, s.hub)
	s.statuses = services.NewStatusService(st, st, s.hub)
	s.night = services.NewNightService(st, st, store.NewLocalMedia(cfg.UploadDir), nightmode.NewClock(cfg.NightTimezone, now))
	s.reaper = worker.NewReaper(st, st)

	s.app = fiber.New(fiber.Config{
		AppName:      "nightcircle",
		BodyLimit:    bodyLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: handlers.ErrorHandler,
	})
	s.app.Use(recover.New())
	s.app.Use(logger.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(allowedOrigins(cfg), ","),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logging.Warn().Err(err).Str("dir", cfg.UploadDir).Msg("failed to create upload dir")
	}
	s.app.Static("/uploads", cfg.UploadDir)

	s.routes()
	return s, nil
}

func (s *Server) openStore(ctx context.Context) error {
	if s.cfg.UsesMemoryStore() {
		logging.Warn().Msg("DATABASE_URL not set, using in-memory store")
		s.store = store.NewMemory()
		return nil
	}
	pool, err := db.Connect(ctx, s.cfg.DatabaseURL, 5)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	pg := store.NewPostgres(pool)
	s.store = pg
	s.closers = append(s.closers, pg.Close)
	if err := db.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

func (s *Server) openCache(ctx context.Context) error {
	if s.cfg.RedisURL == "" {
		s.cache = store.NopPresence{}
		return nil
	}
	rp, err := store.NewRedisPresence(ctx, s.cfg.RedisURL)
	if err != nil {
		return err
	}
	s.closers = append(s.closers, func() { _ = rp.Close() })
	if err := rp.Reset(ctx); err != nil {
		logging.Warn().Err(err).Msg("failed to reset presence mirror")
	}
	s.cache = rp
	return nil
}

func allowedOrigins(cfg *config.Config) []string {
	var origins []string
	if cfg.ClientURL != "" {
		origins = append(origins, cfg.ClientURL)
	}
	if !cfg.IsProduction() {
		origins = append(origins, "http://localhost:3000", "http://localhost:5173")
	}
	return origins
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Supervisor returns the tree running the background sweeps.
func (s *Server) Supervisor() *suture.Supervisor {
	sup := worker.NewSupervisor("nightcircle")
	sup.Add(s.reaper.Service(s.cfg.ReaperInterval))
	sup.Add(worker.RoomSweeper(s.night, s.cfg.RoomSweepInterval))
	return sup
}

// Shutdown closes live sockets first so their handlers return, then drains
// in-flight HTTP requests.
func (s *Server) Shutdown() error {
	s.hub.CloseAll()
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}

func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func Run() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := New(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to start")
	}
	defer srv.Close()

	supDone := srv.Supervisor().ServeBackground(ctx)

	go func() {
		if err := srv.App().Listen(":" + cfg.Port); err != nil {
			logging.Fatal().Err(err).Msg("listen failed")
		}
	}()
	logging.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server started")

	<-ctx.Done()
	logging.Info().Msg("Gracefully shutting down...")
	if err := srv.Shutdown(); err != nil {
		logging.Error().Err(err).Msg("shutdown failed")
	}
	if err := <-supDone; err != nil && ctx.Err() == nil {
		logging.Error().Err(err).Msg("supervisor stopped")
	}
	logging.Info().Msg("Server shutdown complete")
}
