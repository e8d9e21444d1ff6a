package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arzzra/camstream/pkg/stream"
)

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ResolutionRequest тело POST /api/resolution
type ResolutionRequest struct {
	Resolution stream.Resolution `json:"resolution"`
}

// statusForError сопоставляет коды ошибок сессии кодам HTTP
func statusForError(err error) int {
	var streamErr *stream.Error
	if !errors.As(err, &streamErr) {
		return http.StatusInternalServerError
	}
	switch streamErr.Code {
	case stream.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	case stream.ErrorCodeInvalidState:
		return http.StatusConflict
	case stream.ErrorCodeNoFrameAvailable:
		return http.StatusNotFound
	case stream.ErrorCodeSocketBindFailure, stream.ErrorCodeWorkerUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	resp := ErrorResponse{Error: err.Error()}
	var streamErr *stream.Error
	if errors.As(err, &streamErr) {
		resp.Code = streamErr.Code.String()
	}
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, resp)
}

func (s *Server) respondStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.controller.Snapshot())
}

func (s *Server) getStatus(c *gin.Context) {
	s.respondStatus(c)
}

func (s *Server) getLog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"lines": s.pump.History()})
}

func (s *Server) connect(c *gin.Context) {
	var req stream.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: stream.ErrorCodeInvalidInput.String()})
		return
	}
	if err := s.controller.Connect(req); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) disconnect(c *gin.Context) {
	if err := s.controller.Disconnect(); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) startStream(c *gin.Context) {
	if err := s.controller.StartStream(); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) stopStream(c *gin.Context) {
	if err := s.controller.StopStream(); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) setResolution(c *gin.Context) {
	var req ResolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: stream.ErrorCodeInvalidInput.String()})
		return
	}
	if err := s.controller.SetResolution(req.Resolution); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) toggleRecording(c *gin.Context) {
	if err := s.controller.ToggleRecording(); err != nil {
		s.fail(c, err)
		return
	}
	s.respondStatus(c)
}

func (s *Server) capture(c *gin.Context) {
	path, err := s.controller.CaptureFrame()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) getFrame(c *gin.Context) {
	if s.preview == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{Error: "предпросмотр отключен"})
		return
	}

	var buf bytes.Buffer
	ok, err := s.preview.EncodePNG(&buf)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, ErrorResponse{
			Error: stream.ErrNoFrameAvailable.Message,
			Code:  stream.ErrorCodeNoFrameAvailable.String(),
		})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// streamEvents отправляет события контроллера клиенту WebSocket. Первым
// сообщением идет текущее состояние сессии.
func (s *Server) streamEvents(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := s.pump.Subscribe(subscriberBuffer)
	defer unsubscribe()

	// Чтение нужно для обработки close и ping от клиента
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v interface{}) error {
		conn.SetWriteDeadline(time.Now().Add(webSocketWriteTimeout))
		return conn.WriteJSON(v)
	}

	if err := write(gin.H{"kind": "snapshot", "status": s.controller.Snapshot()}); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-c.Request.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
					time.Now().Add(webSocketWriteTimeout))
				return
			}
			if err := write(e); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
