package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	types "github.com/sebas/voicebridge/api/types/v1"
	"github.com/sebas/voicebridge/internal/bridge"
	"github.com/sebas/voicebridge/internal/telephony"
	"github.com/sebas/voicebridge/internal/transport"
)

// Route paths.
const (
	PathVoice  = "/twilio/voice"
	PathMedia  = "/media"
	PathHealth = "/api/v1/health"
	PathStats  = "/api/v1/stats"
	PathCalls  = "/api/v1/calls"
	PathMetric = "/metrics"
)

// BridgeProvider runs and reports bridges.
// Implemented by bridge.Manager.
type BridgeProvider interface {
	Serve(ctx context.Context, conn bridge.Conn, remoteAddr string) error
	Count() int
	List() []bridge.Info
}

// CallControl configures the document returned to the carrier for new calls.
type CallControl struct {
	Greeting       string
	ClosingMessage string // spoken instead of streaming when StreamURL is empty
	Voice          string
	StreamURL      string
}

// Server provides the carrier-facing endpoints and the operational API.
type Server struct {
	addr        string
	httpServer  *http.Server
	bridges     BridgeProvider
	callControl CallControl
	upgrader    websocket.Upgrader
	idleTimeout time.Duration
	startTime   time.Time

	ctx    context.Context // parent of every bridge started here
	cancel context.CancelFunc
}

// NewServer creates the HTTP server. idleTimeout applies to carrier media
// sockets; zero disables it.
func NewServer(addr string, bridges BridgeProvider, cc CallControl, idleTimeout time.Duration) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:        addr,
		bridges:     bridges,
		callControl: cc,
		idleTimeout: idleTimeout,
		startTime:   time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The carrier does not send a browser Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()

	// Carrier
	mux.HandleFunc(PathVoice, s.handleVoice)
	mux.HandleFunc(PathMedia, s.handleMedia)

	// Health and stats
	mux.HandleFunc(PathHealth, s.handleHealth)
	mux.HandleFunc(PathStats, s.handleStats)
	mux.HandleFunc(PathCalls, s.handleCalls)
	mux.Handle(PathMetric, promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	slog.Info("[API] Starting HTTP server", "addr", ln.Addr().String())
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[API] Server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests. Bridges already running are ended by
// their manager; Shutdown cancels their parent context as a backstop.
func (s *Server) Shutdown(ctx context.Context) error {
	defer s.cancel()
	return s.httpServer.Shutdown(ctx)
}

// --- Carrier ---

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cc := s.callControl
	greeting := cc.Greeting
	if cc.StreamURL == "" && cc.ClosingMessage != "" {
		if greeting != "" {
			greeting += " "
		}
		greeting += cc.ClosingMessage
	}

	doc, err := telephony.NewVoiceResponse(greeting, cc.Voice, cc.StreamURL).Marshal()
	if err != nil {
		slog.Error("[API] Failed to build voice response", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	slog.Debug("[API] Voice webhook", "call_sid", r.FormValue("CallSid"), "streaming", cc.StreamURL != "")
	w.Header().Set("Content-Type", "text/xml")
	_, _ = w.Write(doc)
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("[API] Media upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	conn := transport.New(ws, s.idleTimeout)
	if err := s.bridges.Serve(s.ctx, conn, conn.RemoteAddr()); err != nil {
		slog.Debug("[API] Media session ended", "remote", r.RemoteAddr, "error", err)
	}
}

// --- Health & Stats ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, types.HealthResponse{
		Status: "ok",
		Uptime: int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	calls := s.bridges.List()

	response := types.StatsResponse{
		Uptime:      int64(time.Since(s.startTime).Seconds()),
		ActiveCalls: len(calls),
	}
	for _, c := range calls {
		response.FramesToSpeech += c.Stats.FramesToSpeech
		response.FramesToTelephony += c.Stats.FramesToTelephony
		response.FramesDropped += c.Stats.DroppedPreStart + c.Stats.DecodeErrors
	}
	s.writeJSON(w, response)
}

func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.bridges.List())
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("[API] Failed to encode response", "error", err)
	}
}
