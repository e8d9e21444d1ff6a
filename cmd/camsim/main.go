// camsim эмулирует камеру HM01B0 для отладки просмотрщика без железа:
// ждет START на UDP порту и отправляет фрагментированные кадры YUY2.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/arzzra/camstream/pkg/sensor"
	"github.com/arzzra/camstream/pkg/stream"
)

func main() {
	def := sensor.DefaultConfig()
	var (
		listen     = flag.String("listen", def.ListenAddr, "Адрес приема START/STOP")
		resolution = flag.String("resolution", "320x240", "Разрешение кадра: 320x240 или 160x120")
		fps        = flag.Float64("fps", def.FPS, "Частота кадров")
		payload    = flag.Int("payload", def.PayloadSize, "Полезная нагрузка фрагмента")
		drop       = flag.Float64("drop", 0, "Доля теряемых фрагментов [0, 1)")
		seed       = flag.Int64("seed", 1, "Зерно генератора потерь")
		debug      = flag.Bool("debug", false, "Отладочный журнал")
	)
	flag.Parse()

	zc := zap.NewProductionConfig()
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if *debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	res, err := stream.ParseResolution(*resolution)
	if err != nil {
		logger.Fatal("invalid resolution", zap.Error(err))
	}

	cfg := sensor.Config{
		ListenAddr:  *listen,
		Width:       res.Width,
		Height:      res.Height,
		FPS:         *fps,
		PayloadSize: *payload,
		DropRate:    *drop,
		Seed:        *seed,
	}

	s, err := sensor.New(cfg, logger)
	if err != nil {
		logger.Fatal("sensor init failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		logger.Error("sensor failed", zap.Error(err))
	}
	stats := s.Statistics()
	logger.Info("camsim finished",
		zap.Uint64("frames_sent", s.FramesSent()),
		zap.Uint64("datagrams_sent", s.DatagramsSent()),
		zap.Uint64("bytes_sent", stats.BytesSent.Load()),
		zap.Uint64("send_errors", stats.SendErrors.Load()),
		zap.Duration("uptime", stats.GetUptime()))
}
