package comms

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dd-drive/utils"
)

const (
	defaultStreamInterval = 500 * time.Millisecond
	writeWait             = time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TelemetryStream pushes a TelemetryReport to each websocket client at a
// fixed interval.
type TelemetryStream struct {
	src      TelemetrySource
	interval time.Duration
	log      *utils.Logger

	quit     chan struct{}
	quitOnce sync.Once
	wg       sync.WaitGroup
}

func NewTelemetryStream(src TelemetrySource, interval time.Duration, log *utils.Logger) *TelemetryStream {
	if interval <= 0 {
		interval = defaultStreamInterval
	}
	return &TelemetryStream{
		src:      src,
		interval: interval,
		log:      log,
		quit:     make(chan struct{}),
	}
}

func (s *TelemetryStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws: upgrade: %v", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	s.log.Info("ws: client %s connected", r.RemoteAddr)

	// Client frames are discarded; a read error means the peer went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.push(conn); err != nil {
			s.log.Info("ws: client %s dropped: %v", r.RemoteAddr, err)
			return
		}
		select {
		case <-gone:
			s.log.Info("ws: client %s disconnected", r.RemoteAddr)
			return
		case <-s.quit:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return
		case <-ticker.C:
		}
	}
}

func (s *TelemetryStream) push(conn *websocket.Conn) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(NewTelemetryReport(s.src.Telemetry()))
}

// Close ends every open session and waits for them to finish.
func (s *TelemetryStream) Close() {
	s.quitOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}
