// camviewer принимает видеопоток камеры HM01B0 по UDP и предоставляет
// управление сессией через HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arzzra/camstream/pkg/api"
	"github.com/arzzra/camstream/pkg/sink"
	"github.com/arzzra/camstream/pkg/stream"
)

func main() {
	var (
		configFile = flag.String("c", "", "Путь к config.toml")
		debug      = flag.Bool("debug", false, "Отладочный журнал")
	)
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *debug {
		cfg.Log.Level = "debug"
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("camviewer failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(cfg logSection) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("уровень журнала: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func run(cfg fileConfig, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sc, err := cfg.streamConfig()
	if err != nil {
		return fmt.Errorf("конфигурация просмотрщика: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	preview := sink.NewPreview()
	sinks, err := sink.New(cfg.sinkOptions(), preview, logger)
	if err != nil {
		return err
	}

	ctrl, err := stream.NewController(sc,
		stream.WithLogger(logger),
		stream.WithMetrics(stream.NewMetrics(registry)),
		stream.WithSinks(sinks),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	pump := api.NewPump(ctrl.Events(), logger)
	reporter := stream.NewReporter(ctrl)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		reporter.Run(ctx)
	}()

	errCh := make(chan error, 1)
	if cfg.API.Enabled {
		opts := []api.Option{api.WithLogger(logger), api.WithPreview(preview)}
		if cfg.Metrics.Enabled {
			opts = append(opts, api.WithGatherer(registry))
		}
		srv := api.NewServer(cfg.apiConfig(), ctrl, pump, opts...)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				errCh <- err
			}
		}()
	}

	logger.Info("camviewer started",
		zap.String("resolution", sc.Resolution.String()),
		zap.String("assembly_mode", sc.AssemblyMode.String()),
		zap.Bool("api", cfg.API.Enabled))

	if cfg.Sensor.AutoConnect {
		autoConnect(ctrl, cfg, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errCh:
		stop()
	}

	// Сначала закрывается сессия: STOP сенсору и завершение горутины приема
	if closeErr := ctrl.Close(); closeErr != nil {
		logger.Warn("controller close failed", zap.Error(closeErr))
	}
	wg.Wait()
	return err
}

func autoConnect(ctrl *stream.Controller, cfg fileConfig, logger *zap.Logger) {
	if err := ctrl.Connect(cfg.connectRequest()); err != nil {
		logger.Warn("auto connect failed", zap.Error(err))
		return
	}
	if !cfg.Sensor.AutoStart {
		return
	}
	if err := ctrl.StartStream(); err != nil {
		logger.Warn("auto start failed", zap.Error(err))
	}
}
