package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"haversine-sensor/internal/utils"
)

const (
	writeWait    = 5 * time.Second
	minInterval  = 100 * time.Millisecond
	pongWait     = 60 * time.Second
	closeMessage = "stream closed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamFrame struct {
	Time     time.Time `json:"time"`
	Readings any       `json:"readings,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type streamer struct {
	sensor   DistanceSensor
	interval time.Duration
	timeout  time.Duration
}

func registerStream(mux *http.ServeMux, opts Options) {
	s := &streamer{sensor: opts.Sensor, interval: opts.StreamInterval, timeout: opts.ReadingsTimeout}
	if s.interval <= 0 {
		s.interval = time.Second
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	// The upgrade needs the raw connection, so this route is not wrapped by
	// the metrics recorder.
	mux.HandleFunc("GET /api/v1/readings/stream", s.handleStream)
}

func (s *streamer) handleStream(w http.ResponseWriter, r *http.Request) {
	interval, err := durationParam(r, "interval", s.interval)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	interval = max(interval, minInterval)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	logger := slog.With("remote", r.RemoteAddr, "interval", interval)
	logger.Info("stream opened")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.readPump(conn, cancel)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.sendFrame(ctx, conn); err != nil {
			logger.Info("stream closed", "error", err)
			return
		}
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, closeMessage),
				time.Now().Add(writeWait))
			logger.Info("stream closed")
			return
		case <-ticker.C:
		}
	}
}

// readPump discards client messages and cancels the stream when the peer goes
// away.
func (s *streamer) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}

func (s *streamer) sendFrame(ctx context.Context, conn *websocket.Conn) error {
	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	readings, err := s.sensor.Readings(qctx)
	cancel()

	frame := streamFrame{Time: time.Now().UTC()}
	switch {
	case err != nil:
		frame.Error = err.Error()
	case readings == nil:
		frame.Readings = map[string]any{}
	default:
		frame.Readings = readings
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(frame)
}
