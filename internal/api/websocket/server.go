package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/fortuna/scoredesk/internal/matchscore"
	"github.com/fortuna/scoredesk/internal/scoring"
)

// SnapshotSource serves the last cached snapshot of a match.
type SnapshotSource interface {
	LoadSnapshot(ctx context.Context, sport matchscore.Sport, matchID string) (*scoring.Snapshot, error)
}

// Server represents the WebSocket server
type Server struct {
	hub       *Hub
	snapshots SnapshotSource
	upgrader  websocket.Upgrader
	logger    *log.Logger
	server    *http.Server
}

// NewServer creates a new WebSocket server. snapshots may be nil. An empty
// allowedOrigins accepts every origin.
func NewServer(hub *Hub, snapshots SnapshotSource, allowedOrigins []string) *Server {
	s := &Server{
		hub:       hub,
		snapshots: snapshots,
		logger:    hub.logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return s
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set["*"] || set[origin]
	}
}

// Handler returns the viewer routes.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws/matches/{matchId}", s.handleMatch)
	router.HandleFunc("/ws/health", s.handleHealth).Methods("GET")
	return router
}

// Start starts the WebSocket server
func (s *Server) Start(port string) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Printf("WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

// handleMatch streams snapshots of one match. The optional ?sport= query lets
// a viewer that connects before any broadcast receive the cached snapshot.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	matchID := mux.Vars(r)["matchId"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(uuid.NewString(), matchID, conn, s.hub)
	if msg, ok := s.initialMessage(r, matchID); ok {
		client.TrySend(msg)
	}
	s.hub.Register(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) initialMessage(r *http.Request, matchID string) (Message, bool) {
	if msg, ok := s.hub.Last(matchID); ok {
		return msg, true
	}
	if s.snapshots == nil {
		return Message{}, false
	}
	sport, err := matchscore.ParseSport(r.URL.Query().Get("sport"))
	if err != nil {
		return Message{}, false
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	snap, err := s.snapshots.LoadSnapshot(ctx, sport, matchID)
	if err != nil {
		return Message{}, false
	}
	return Message{Type: MessageTypeSnapshot, MatchID: matchID, Payload: snap, Timestamp: time.Now()}, true
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"clients": s.hub.ClientCount(),
	})
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
