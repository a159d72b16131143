// Package server exposes the memory system to external collaborators (the
// voice/conversation pipeline) over WebSocket, plus a plain HTTP health
// endpoint. The wire protocol is one JSON request per message with a typed
// response, so a speech frontend in any language can drive the memory
// engine.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/mnemohq/mnemo/memory"
)

// MemoryService is the slice of the memory System the gateway needs.
type MemoryService interface {
	AddInteraction(ctx context.Context, userID, userMessage, assistantResponse string, metadata map[string]string) error
	EndSession(ctx context.Context, userID string) ([]memory.ClusterResult, error)
	Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error)
	GetContext(ctx context.Context, userID string, limit int) ([]memory.Interaction, error)
	Remember(ctx context.Context, userID, content string) (string, error)
}

// Config configures the gateway.
type Config struct {
	Memory MemoryService
}

// Server is the WebSocket gateway.
type Server struct {
	memory   MemoryService
	upgrader websocket.Upgrader
	mux      *http.ServeMux
}

// New creates a gateway around the given memory service.
func New(cfg Config) (*Server, error) {
	if cfg.Memory == nil {
		return nil, fmt.Errorf("Memory is required")
	}
	s := &Server{
		memory: cfg.Memory,
		upgrader: websocket.Upgrader{
			// Local SDK server: accept any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s, nil
}

// Handler returns the HTTP handler, for callers embedding the gateway in
// their own server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until the listener fails.
func (s *Server) Run(addr string) error {
	log.Printf("[SERVER] listening on %s", addr)
	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"ok"}`)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[SERVER] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SERVER] read failed: %v", err)
			}
			return
		}

		resp := s.dispatch(r.Context(), &req)
		if err := conn.WriteJSON(resp); err != nil {
			log.Printf("[SERVER] write failed: %v", err)
			return
		}
	}
}

func (s *Server) dispatch(ctx context.Context, req *Request) *Response {
	resp := &Response{ID: req.ID, OK: true}

	switch req.Type {
	case "add_interaction":
		// Fire-and-forget from the conversation loop's perspective:
		// failures are reported but never close the connection.
		if err := s.memory.AddInteraction(ctx, req.UserID, req.UserMessage, req.AssistantResponse, req.Metadata); err != nil {
			log.Printf("[SERVER] add_interaction failed for user %s: %v", req.UserID, err)
			resp.fail(err)
		}

	case "get_context":
		turns, err := s.memory.GetContext(ctx, req.UserID, req.Limit)
		if err != nil {
			resp.fail(err)
			break
		}
		resp.Context = turns

	case "search":
		results, err := s.memory.Search(ctx, req.Query, memory.SearchOptions{
			Limit:         req.Limit,
			MinSimilarity: req.MinSimilarity,
			Category:      memory.Category(req.Category),
		})
		if err != nil {
			resp.fail(err)
			break
		}
		resp.Results = toWireResults(results)

	case "end_session":
		clusters, err := s.memory.EndSession(ctx, req.UserID)
		if err != nil {
			resp.fail(err)
			break
		}
		resp.Clusters = toWireClusters(clusters)

	case "remember":
		id, err := s.memory.Remember(ctx, req.UserID, req.Content)
		if err != nil {
			resp.fail(err)
			break
		}
		resp.MemoryID = id

	default:
		resp.fail(fmt.Errorf("unknown request type %q", req.Type))
	}

	return resp
}
