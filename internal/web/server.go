package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ypei92/backfill-media-date/internal/config"
	"github.com/ypei92/backfill-media-date/internal/report"
	"github.com/ypei92/backfill-media-date/internal/runner"
)

// Server exposes backfill runs over HTTP. Log lines produced during a
// run are streamed to connected WebSocket clients.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current run state. Only one run may be in flight at a time.
	runMutex      sync.RWMutex
	isRunning     bool
	currentReport *report.Report
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type BackfillRequest struct {
	Directory string `json:"directory"`
	RealRun   bool   `json:"real_run"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/backfill", s.handleBackfill).Methods("POST")
	api.HandleFunc("/report", s.handleGetReport).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.runMutex.RLock()
	running := s.isRunning
	rep := s.currentReport
	s.runMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running": running,
			"report":  reportData(rep),
		},
	})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	var req BackfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Directory == "" {
		s.writeError(w, "Directory is required", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(req.Directory); os.IsNotExist(err) {
		s.writeError(w, "Directory does not exist", http.StatusBadRequest)
		return
	}

	// Claim the run slot before spawning, so two concurrent POSTs
	// cannot both pass a check-then-start race.
	rep := report.NewReport()
	if !s.beginRun(rep) {
		s.writeError(w, "A run is already in progress", http.StatusConflict)
		return
	}

	go s.runBackfillAsync(req, rep)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Backfill started",
	})
}

// beginRun claims the single run slot. It returns false when a run is
// already in flight.
func (s *Server) beginRun(rep *report.Report) bool {
	s.runMutex.Lock()
	defer s.runMutex.Unlock()
	if s.isRunning {
		return false
	}
	s.isRunning = true
	s.currentReport = rep
	return true
}

func (s *Server) endRun() {
	s.runMutex.Lock()
	s.isRunning = false
	s.runMutex.Unlock()
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	s.runMutex.RLock()
	rep := s.currentReport
	s.runMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    reportData(rep),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// runBackfillAsync executes a run whose slot was already claimed via
// beginRun.
func (s *Server) runBackfillAsync(req BackfillRequest, rep *report.Report) {
	s.broadcastWSMessage("backfill_started", map[string]interface{}{
		"directory": req.Directory,
		"real_run":  req.RealRun,
	})

	// Copy the base config; runs launched over HTTP never fall back to
	// interactive confirmation, so the nil confirm aborts instead.
	cfg := *s.cfg
	cfg.MediaDirectory = req.Directory
	cfg.RealRun = req.RealRun

	hook := func(level, message string) {
		s.broadcastWSMessage("log", map[string]interface{}{
			"level":   level,
			"message": message,
		})
	}

	err := runner.NewRunnerWithLogHook(&cfg, s.log, rep, nil, hook).Run()

	s.endRun()

	if err != nil {
		s.broadcastWSMessage("backfill_error", map[string]interface{}{
			"error": err.Error(),
		})
	} else {
		s.broadcastWSMessage("backfill_completed", map[string]interface{}{
			"summary": rep.Summary(),
		})
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func reportData(rep *report.Report) interface{} {
	if rep == nil {
		return nil
	}
	return map[string]interface{}{
		"summary": rep.Summary(),
		"files": map[string]interface{}{
			"total_found":     atomic.LoadInt64(&rep.TotalFilesFound),
			"total_processed": atomic.LoadInt64(&rep.TotalFilesProcessed),
			"backfilled":      atomic.LoadInt64(&rep.FilesBackfilled),
			"skipped":         atomic.LoadInt64(&rep.FilesSkipped),
			"passed_through":  atomic.LoadInt64(&rep.FilesPassedThrough),
			"bmp_conversions": atomic.LoadInt64(&rep.BMPConversions),
			"video_remuxes":   atomic.LoadInt64(&rep.VideoRemuxes),
		},
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
