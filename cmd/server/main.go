package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/studyroom/internal/adapters/http"
	sig "github.com/dkeye/studyroom/internal/adapters/signal"
	"github.com/dkeye/studyroom/internal/app"
	"github.com/dkeye/studyroom/internal/app/countsync"
	"github.com/dkeye/studyroom/internal/app/orch"
	"github.com/dkeye/studyroom/internal/config"
	"github.com/dkeye/studyroom/internal/metrics"
	"github.com/dkeye/studyroom/internal/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	rooms, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy, err := app.PolicyByName(cfg.BackpressurePolicy)
	if err != nil {
		return err
	}

	syncer := countsync.New(rooms, countsync.Options{
		Workers: cfg.CountSync.Workers,
		Timeout: cfg.CountSync.Timeout,
		OnResult: func(r countsync.Result) {
			m.CountSyncResult(string(r))
		},
	})
	o := orch.New(policy, syncer, m)

	ctl := sig.NewSignalWSController(o, sig.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		RelayLimit:     cfg.Relay.RateLimit,
		RelayInterval:  cfg.Relay.RateInterval,
		AllowedOrigins: cfg.AllowedOrigins,
	}, m)

	// connCtx ends every signaling connection; it is cancelled on shutdown
	// before the final count flush.
	connCtx, closeConns := context.WithCancel(context.Background())
	defer closeConns()

	r := router.SetupRouter(connCtx, cfg, router.Deps{
		Orch:    o,
		Rooms:   service.NewRoomService(rooms, nil),
		Signal:  ctl,
		Metrics: m,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	syncCtx, stopSync := context.WithCancel(context.Background())
	defer stopSync()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return syncer.Run(syncCtx)
	})
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("StudyRoom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		closeConns()
		if err := ctl.Wait(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("signaling connections still open at shutdown")
		}
		stopSync()

		flushCtx, flushCancel := context.WithTimeout(context.Background(), cfg.CountSync.Timeout)
		defer flushCancel()
		syncer.Flush(flushCtx)
		return nil
	})
	return g.Wait()
}
