package server_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mnemohq/mnemo/memory"
	"github.com/mnemohq/mnemo/server"
)

// fakeMemory is a canned MemoryService recording what the gateway asked of
// it.
type fakeMemory struct {
	addErr   error
	added    []string
	context  []memory.Interaction
	results  []memory.SearchResult
	clusters []memory.ClusterResult
	memoryID string

	lastQuery string
	lastOpts  memory.SearchOptions
}

func (f *fakeMemory) AddInteraction(ctx context.Context, userID, userMessage, assistantResponse string, metadata map[string]string) error {
	f.added = append(f.added, userMessage)
	return f.addErr
}

func (f *fakeMemory) EndSession(ctx context.Context, userID string) ([]memory.ClusterResult, error) {
	return f.clusters, nil
}

func (f *fakeMemory) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.SearchResult, error) {
	f.lastQuery = query
	f.lastOpts = opts
	return f.results, nil
}

func (f *fakeMemory) GetContext(ctx context.Context, userID string, limit int) ([]memory.Interaction, error) {
	return f.context, nil
}

func (f *fakeMemory) Remember(ctx context.Context, userID, content string) (string, error) {
	return f.memoryID, nil
}

func dialTestServer(t *testing.T, mem *fakeMemory) *websocket.Conn {
	t.Helper()
	srv, err := server.New(server.Config{Memory: mem})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req server.Request) server.Response {
	t.Helper()
	if err := conn.WriteJSON(req); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var resp server.Response
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	return resp
}

func TestServer_AddInteraction(t *testing.T) {
	mem := &fakeMemory{}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{
		ID:                "r1",
		Type:              "add_interaction",
		UserID:            "u1",
		UserMessage:       "I prefer green tea",
		AssistantResponse: "Noted",
	})
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}
	if resp.ID != "r1" {
		t.Errorf("response ID = %q, want r1", resp.ID)
	}
	if len(mem.added) != 1 || mem.added[0] != "I prefer green tea" {
		t.Errorf("service saw %v, want the user message", mem.added)
	}
}

func TestServer_AddInteractionFailureKeepsConnection(t *testing.T) {
	mem := &fakeMemory{addErr: errors.New("redis down")}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{Type: "add_interaction", UserID: "u1"})
	if resp.OK {
		t.Fatal("response ok despite service failure")
	}

	// The connection stays usable after a failed operation.
	mem.addErr = nil
	resp = roundTrip(t, conn, server.Request{Type: "add_interaction", UserID: "u1"})
	if !resp.OK {
		t.Fatalf("follow-up request failed: %s", resp.Error)
	}
}

func TestServer_Search(t *testing.T) {
	mem := &fakeMemory{results: []memory.SearchResult{
		{
			Memory: memory.Memory{
				ID:         "m1",
				Content:    "User is allergic to peanuts",
				Category:   memory.CategoryHealth,
				CreatedAt:  time.Now(),
				Confidence: 1.0,
			},
			Similarity: 0.93,
		},
	}}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{
		Type:          "search",
		Query:         "peanut allergy",
		Limit:         3,
		MinSimilarity: 0.6,
		Category:      "health",
	})
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(resp.Results))
	}
	if resp.Results[0].ID != "m1" || resp.Results[0].Similarity != 0.93 {
		t.Errorf("result = %+v, want m1 at 0.93", resp.Results[0])
	}

	if mem.lastQuery != "peanut allergy" {
		t.Errorf("service query = %q", mem.lastQuery)
	}
	want := memory.SearchOptions{Limit: 3, MinSimilarity: 0.6, Category: memory.CategoryHealth}
	if mem.lastOpts != want {
		t.Errorf("service opts = %+v, want %+v", mem.lastOpts, want)
	}
}

func TestServer_GetContext(t *testing.T) {
	mem := &fakeMemory{context: []memory.Interaction{
		{UserID: "u1", UserMessage: "hi", AssistantResponse: "Hello!"},
	}}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{Type: "get_context", UserID: "u1", Limit: 5})
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}
	if len(resp.Context) != 1 || resp.Context[0].UserMessage != "hi" {
		t.Errorf("context = %+v, want the canned turn", resp.Context)
	}
}

func TestServer_EndSession(t *testing.T) {
	mem := &fakeMemory{clusters: []memory.ClusterResult{
		{MemoryID: "m1", Content: "merged", Category: memory.CategoryPersonal},
		{Content: "failed", Category: memory.CategoryGeneral, Err: errors.New("store down")},
	}}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{Type: "end_session", UserID: "u1"})
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}
	if len(resp.Clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(resp.Clusters))
	}
	if resp.Clusters[0].MemoryID != "m1" || resp.Clusters[0].Error != "" {
		t.Errorf("first cluster = %+v", resp.Clusters[0])
	}
	if resp.Clusters[1].Error == "" {
		t.Errorf("second cluster error not reported: %+v", resp.Clusters[1])
	}
}

func TestServer_Remember(t *testing.T) {
	mem := &fakeMemory{memoryID: "m42"}
	conn := dialTestServer(t, mem)

	resp := roundTrip(t, conn, server.Request{Type: "remember", UserID: "u1", Content: "I take my coffee black"})
	if !resp.OK {
		t.Fatalf("response not ok: %s", resp.Error)
	}
	if resp.MemoryID != "m42" {
		t.Errorf("memory ID = %q, want m42", resp.MemoryID)
	}
}

func TestServer_UnknownType(t *testing.T) {
	conn := dialTestServer(t, &fakeMemory{})

	resp := roundTrip(t, conn, server.Request{Type: "bogus"})
	if resp.OK {
		t.Fatal("response ok for unknown request type")
	}
	if !strings.Contains(resp.Error, "bogus") {
		t.Errorf("error = %q, want it to name the type", resp.Error)
	}
}

func TestServer_Health(t *testing.T) {
	srv, err := server.New(server.Config{Memory: &fakeMemory{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
