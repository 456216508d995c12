// Package server exposes an orchestrator.Scheduler's health/status over
// HTTP, plus a websocket feed of the latest Schedule, so an operator can
// watch a running deployment without reading schedule.json off disk.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oakfield-energy/battery-dispatch/dispatchmodel"
	"github.com/oakfield-energy/battery-dispatch/orchestrator"
)

// broadcastInterval is how often connected clients receive a refreshed
// status snapshot even with no new schedule, matching the teacher's
// WebServer.broadcastStatus cadence.
const broadcastInterval = 5 * time.Second

// Server serves health/status JSON and broadcasts schedule updates over
// websocket. Grounded on the teacher's WebServer: an http.Server, a
// websocket.Upgrader, a sync.Map of connected clients, and a buffered
// broadcast channel drained by its own goroutine.
type Server struct {
	scheduler *orchestrator.Scheduler
	httpSrv   *http.Server
	port      int
	startTime time.Time

	upgrader  websocket.Upgrader
	clients   sync.Map
	broadcast chan []byte
	done      chan struct{}
}

// New builds a Server bound to port. port <= 0 disables it, matching the
// teacher's NewWebServer/NewHealthServer convention.
func New(scheduler *orchestrator.Scheduler, port int) *Server {
	if port <= 0 {
		return nil
	}

	mux := http.NewServeMux()
	s := &Server{
		scheduler: scheduler,
		port:      port,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		broadcast: make(chan []byte, 256),
		done:      make(chan struct{}),
		httpSrv: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}

	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/ready", s.readinessHandler)
	mux.HandleFunc("/status", s.statusHandler)
	mux.HandleFunc("/ws", s.wsHandler)

	return s
}

// Start launches the HTTP listener and the broadcast goroutines.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	go s.handleBroadcasts()
	go s.periodicBroadcast()
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("server: listen error: %v\n", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down, closing every websocket client.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	close(s.done)
	s.clients.Range(func(key, _ any) bool {
		if conn, ok := key.(*websocket.Conn); ok {
			conn.Close()
		}
		return true
	})
	return s.httpSrv.Shutdown(ctx)
}

type healthResponse struct {
	Status      string    `json:"status"`
	Timestamp   string    `json:"timestamp"`
	Uptime      string    `json:"uptime"`
	IsRunning   bool      `json:"is_running"`
	HasSchedule bool      `json:"has_schedule"`
	RunID       int64     `json:"run_id,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
}

func (s *Server) buildHealth() healthResponse {
	status := s.scheduler.GetStatus()
	h := healthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Uptime:      time.Since(s.startTime).String(),
		IsRunning:   status.IsRunning,
		HasSchedule: status.HasSchedule,
		RunID:       status.RunID,
		GeneratedAt: status.GeneratedAt,
		LastError:   status.LastError,
	}
	if !status.IsRunning {
		h.Status = "unhealthy"
	}
	return h
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h := s.buildHealth()
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	status := s.scheduler.GetStatus()
	ready := map[string]any{
		"ready":     status.IsRunning,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	w.Header().Set("Content-Type", "application/json")
	if !status.IsRunning {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(ready)
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.buildStatusData())
}

// buildStatusData combines health and the latest Schedule into one payload,
// the shape both /status and the websocket feed send.
func (s *Server) buildStatusData() map[string]any {
	sched := s.scheduler.GetSchedule()
	data := map[string]any{
		"health":    s.buildHealth(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if sched != nil {
		data["schedule"] = sched
		now := dispatchmodel.FloorToSlot(time.Now().In(s.scheduler.Location()))
		if item, ok := sched.At(now); ok {
			data["current_slot"] = item
		}
	}
	return data
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Printf("server: websocket upgrade error: %v\n", err)
		return
	}
	s.clients.Store(conn, true)

	if data, err := json.Marshal(s.buildStatusData()); err == nil {
		conn.WriteMessage(websocket.TextMessage, data)
	}

	defer func() {
		s.clients.Delete(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				fmt.Printf("server: websocket error: %v\n", err)
			}
			break
		}
	}
}

func (s *Server) handleBroadcasts() {
	for {
		select {
		case message := <-s.broadcast:
			s.clients.Range(func(key, _ any) bool {
				conn, ok := key.(*websocket.Conn)
				if !ok {
					return true
				}
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					conn.Close()
					s.clients.Delete(conn)
				}
				return true
			})
		case <-s.done:
			return
		}
	}
}

// Broadcast pushes the current status/schedule to every connected client
// immediately, independent of the periodic tick. Within this repository
// only periodicBroadcast calls it; nothing calls it after a Replan, so
// clients see a new schedule on the next broadcastInterval tick.
func (s *Server) Broadcast() {
	if s == nil {
		return
	}
	data, err := json.Marshal(s.buildStatusData())
	if err != nil {
		return
	}
	select {
	case s.broadcast <- data:
	default:
	}
}

func (s *Server) periodicBroadcast() {
	ticker := time.NewTicker(broadcastInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			hasClients := false
			s.clients.Range(func(any, any) bool { hasClients = true; return false })
			if hasClients {
				s.Broadcast()
			}
		case <-s.done:
			return
		}
	}
}
