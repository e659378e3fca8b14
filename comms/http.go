package comms

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"dd-drive/utils"
)

// RouterOptions configures the HTTP surface.
type RouterOptions struct {
	// JWTSecret, when set, guards /cmd and /stop.
	JWTSecret      string
	StreamInterval time.Duration
	// RequestLog mounts the chi request logger.
	RequestLog bool
}

type handlers struct {
	cmd Commander
	tel TelemetrySource
	log *utils.Logger
}

// NewRouter builds the command and telemetry routes. The returned stream must
// be closed on shutdown to end open websocket sessions.
func NewRouter(cmd Commander, tel TelemetrySource, opts RouterOptions, log *utils.Logger) (http.Handler, *TelemetryStream) {
	h := &handlers{cmd: cmd, tel: tel, log: log}
	stream := NewTelemetryStream(tel, opts.StreamInterval, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		if opts.JWTSecret != "" {
			r.Use(ValidateJWT([]byte(opts.JWTSecret)))
		}
		r.Get("/cmd", h.command)
		r.Get("/stop", h.stop)
	})

	r.Get("/telemetry", h.telemetry)
	r.Get("/ws/telemetry", stream.ServeHTTP)

	return r, stream
}

func (h *handlers) command(w http.ResponseWriter, r *http.Request) {
	c, err := ParseQuery(r.URL.Query())
	if err != nil {
		h.log.Warn("http: %v", err)
		render.Render(w, r, ErrInvalidRequest(err))
		return
	}
	l, rt := c.Apply(h.cmd)
	h.log.Info("http: targets L=%.0f R=%.0f", l, rt)
	render.PlainText(w, r, fmt.Sprintf("OK L=%.0f R=%.0f", l, rt))
}

func (h *handlers) stop(w http.ResponseWriter, r *http.Request) {
	h.cmd.Stop()
	h.log.Info("http: stop")
	render.PlainText(w, r, "STOPPED")
}

func (h *handlers) telemetry(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, NewTelemetryReport(h.tel.Telemetry()))
}
