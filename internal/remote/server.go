// ABOUTME: WebSocket remote control server
// ABOUTME: Serves /control commands, periodic status, Prometheus /metrics and /healthz
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mictroll/mictroll-go/internal/app"
	"github.com/mictroll/mictroll-go/internal/discovery"
	"github.com/mictroll/mictroll-go/internal/observe"
	"github.com/mictroll/mictroll-go/pkg/params"
)

const (
	// DefaultStatusInterval paces unsolicited status messages
	DefaultStatusInterval = time.Second

	writeDeadline = 10 * time.Second
	pingInterval  = 30 * time.Second
	sendBuffer    = 16
)

// Controller is the part of the application controller the server drives
type Controller interface {
	Start() error
	Stop()
	Status() app.Status
	Params() *params.Store
}

// Config holds server configuration
type Config struct {
	// Addr is the listen address, e.g. ":8927"
	Addr       string
	Name       string
	EnableMDNS bool
	Controller Controller

	// Metrics records parameter updates; nil disables recording
	Metrics *observe.Metrics

	// MetricsHandler serves /metrics; defaults to promhttp.Handler()
	MetricsHandler http.Handler

	StatusInterval time.Duration
}

// Server is the remote control endpoint
type Server struct {
	config   Config
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	clients   map[*client]struct{}
	clientsMu sync.Mutex

	wg sync.WaitGroup
}

type client struct {
	conn     *websocket.Conn
	sendChan chan Message
	done     chan struct{}
}

// New creates a server
func New(config Config) (*Server, error) {
	if config.Controller == nil {
		return nil, fmt.Errorf("remote server requires a controller")
	}
	if config.StatusInterval <= 0 {
		config.StatusInterval = DefaultStatusInterval
	}
	if config.MetricsHandler == nil {
		config.MetricsHandler = promhttp.Handler()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin != "" {
					log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				}
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}

	s.mux.HandleFunc(discovery.ControlPath, s.handleWebSocket)
	s.mux.Handle("/metrics", config.MetricsHandler)
	s.mux.HandleFunc("/healthz", s.handleHealth)

	return s, nil
}

// Handler returns the HTTP handler for all endpoints
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}

	httpServer := &http.Server{Handler: s.mux}
	log.Printf("Remote control listening on %s", ln.Addr())

	var mdnsManager *discovery.Manager
	if s.config.EnableMDNS {
		mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        ln.Addr().(*net.TCPAddr).Port,
		})
		if err := mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Printf("Remote control shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serveErr = err
	}

	if mdnsManager != nil {
		mdnsManager.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	s.closeClients()
	s.wg.Wait()

	if serveErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serveErr)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"session": s.config.Controller.Status().State.String(),
	})
}

// handleWebSocket upgrades and serves one control connection
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("Remote connected from %s", r.RemoteAddr)
	s.handleConnection(conn)
	log.Printf("Remote disconnected: %s", r.RemoteAddr)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	c := &client{
		conn:     conn,
		sendChan: make(chan Message, sendBuffer),
		done:     make(chan struct{}),
	}

	s.clientsMu.Lock()
	s.clients[c] = struct{}{}
	s.clientsMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.clientWriter(c)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		close(c.done)
	}()

	s.sendStatus(c, "")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		s.handleClientMessage(c, data)
	}
}

// clientWriter owns all writes to the connection
func (s *Server) clientWriter(c *client) {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	status := time.NewTicker(s.config.StatusInterval)
	defer status.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.sendChan:
			if err := s.write(c, msg); err != nil {
				log.Printf("Error writing message: %v", err)
				c.conn.Close()
				return
			}
		case <-status.C:
			msg, err := NewMessage(TypeStatus, NewStatus(s.config.Controller.Status()))
			if err != nil {
				log.Printf("Error encoding status: %v", err)
				continue
			}
			if err := s.write(c, msg); err != nil {
				c.conn.Close()
				return
			}
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (s *Server) write(c *client, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", msg.Type, err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// handleClientMessage dispatches one command and replies
func (s *Server) handleClientMessage(c *client, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(c, badRequest("", fmt.Errorf("invalid message: %w", err)))
		return
	}

	ctrl := s.config.Controller

	switch msg.Type {
	case TypeSessionStart:
		if err := ctrl.Start(); err != nil {
			log.Printf("Remote start failed: %v", err)
			s.sendError(c, classify(msg.Type, err))
		}
	case TypeSessionStop:
		ctrl.Stop()
	case TypeParamsSet:
		patch, err := decodePatch(msg)
		if err != nil {
			s.sendError(c, badRequest(msg.Type, err))
			return
		}
		ctrl.Params().ApplyPatch(patch)
		s.recordParamUpdate()
	case TypeParamsReset:
		ctrl.Params().Reset()
		s.recordParamUpdate()
	case TypeStatusGet:
	default:
		s.sendError(c, badRequest(msg.Type, fmt.Errorf("unknown message type %q", msg.Type)))
		return
	}

	s.sendStatus(c, msg.Type)
}

func decodePatch(msg Message) (params.Patch, error) {
	var patch params.Patch
	if err := msg.Decode(&patch); err != nil {
		return patch, err
	}
	if patch.Empty() {
		return patch, fmt.Errorf("%s: no parameters given", msg.Type)
	}
	return patch, nil
}

func (s *Server) recordParamUpdate() {
	if s.config.Metrics != nil {
		s.config.Metrics.RecordParamUpdate(context.Background(), "remote")
	}
}

// sendStatus queues the current status as the answer to command
func (s *Server) sendStatus(c *client, command string) {
	st := NewStatus(s.config.Controller.Status())
	st.Command = command
	msg, err := NewMessage(TypeStatus, st)
	if err != nil {
		log.Printf("Error encoding status: %v", err)
		return
	}
	s.send(c, msg)
}

func (s *Server) sendError(c *client, reply *ErrorReply) {
	msg, err := NewMessage(TypeError, reply)
	if err != nil {
		log.Printf("Error encoding error reply: %v", err)
		return
	}
	s.send(c, msg)
}

// send queues msg without blocking the reader
func (s *Server) send(c *client, msg Message) {
	select {
	case c.sendChan <- msg:
	default:
		log.Printf("Client send buffer full, dropping %s", msg.Type)
	}
}

func (s *Server) closeClients() {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	for c := range s.clients {
		c.conn.Close()
	}
}
