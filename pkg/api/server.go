// Package api предоставляет HTTP интерфейс просмотрщика: управление сессией,
// состояние, предпросмотр кадра, журнал событий через WebSocket и метрики
// Prometheus.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/sink"
	"github.com/arzzra/camstream/pkg/stream"
)

const (
	webSocketReadBufferSize  = 1024
	webSocketWriteBufferSize = 4096
	webSocketWriteTimeout    = 2 * time.Second
	subscriberBuffer         = 64
	shutdownTimeout          = 3 * time.Second
)

// Config параметры HTTP сервера
type Config struct {
	ListenAddr string
	// AllowedOrigins источники, которым разрешено подключение к /api/events.
	// Пустой список разрешает любые.
	AllowedOrigins []string
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{ListenAddr: "127.0.0.1:8080"}
}

// Server HTTP сервер управления просмотрщиком
type Server struct {
	cfg        Config
	controller *stream.Controller
	pump       *Pump
	preview    *sink.Preview
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	router     *gin.Engine
	upgrader   websocket.Upgrader
}

// Option настраивает сервер
type Option func(*Server)

// WithLogger задает логгер
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPreview включает GET /api/frame.png
func WithPreview(p *sink.Preview) Option {
	return func(s *Server) { s.preview = p }
}

// WithGatherer включает GET /metrics
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer создает сервер. pump должен быть запущен вызывающим.
func NewServer(cfg Config, controller *stream.Controller, pump *Pump, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		pump:       pump,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "api"))
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  webSocketReadBufferSize,
		WriteBufferSize: webSocketWriteBufferSize,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.newRouter()
	return s
}

// Handler возвращает обработчик HTTP
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run обслуживает запросы до отмены ctx
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server listening", zap.String("addr", s.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("API сервер: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("API server shutdown failed", zap.Error(err))
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

func (s *Server) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.accessLog())

	api := router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/log", s.getLog)
		api.GET("/events", s.streamEvents)
		api.GET("/frame.png", s.getFrame)

		api.POST("/connect", s.connect)
		api.POST("/disconnect", s.disconnect)
		api.POST("/stream/start", s.startStream)
		api.POST("/stream/stop", s.stopStream)
		api.POST("/resolution", s.setResolution)
		api.POST("/record/toggle", s.toggleRecording)
		api.POST("/capture", s.capture)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "time": time.Now().UTC()})
	})
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

// accessLog пишет запросы в zap вместо стандартного логгера gin
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
