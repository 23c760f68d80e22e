package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Workspace counts the content of a tenant. The empty tenant is the default
// one.
type Workspace interface {
	CountFlows(ctx context.Context, tenant string) (int64, error)
	CountExecutions(ctx context.Context, tenant string) (int64, error)
}

// MemoryWorkspace keeps counts in memory.
type MemoryWorkspace struct {
	mu         sync.RWMutex
	flows      map[string]int64
	executions map[string]int64
}

var _ Workspace = (*MemoryWorkspace)(nil)

func NewMemoryWorkspace() *MemoryWorkspace {
	return &MemoryWorkspace{flows: map[string]int64{}, executions: map[string]int64{}}
}

func (m *MemoryWorkspace) SetCounts(tenant string, flows, executions int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows[tenant] = flows
	m.executions[tenant] = executions
}

func (m *MemoryWorkspace) CountFlows(_ context.Context, tenant string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flows[tenant], nil
}

func (m *MemoryWorkspace) CountExecutions(_ context.Context, tenant string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.executions[tenant], nil
}

type searchTotal struct {
	Total int64 `json:"total"`
}

func (s *Server) SearchFlows() http.HandlerFunc {
	return s.searchTotal("flows", s.workspace.CountFlows)
}

func (s *Server) SearchExecutions() http.HandlerFunc {
	return s.searchTotal("executions", s.workspace.CountExecutions)
}

// searchTotal answers the search routes with their total only; the console
// uses them to detect an empty workspace.
func (s *Server) searchTotal(kind string, count func(context.Context, string) (int64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant := r.PathValue("tenant")
		n, err := count(r.Context(), tenant)
		if err != nil {
			zerolog.Ctx(r.Context()).Err(err).Str("kind", kind).Str("tenant", tenant).Msg("count failed")
			writeError(w, http.StatusInternalServerError, "server_error", "Failed to count "+kind)
			return
		}
		zerolog.Ctx(r.Context()).Debug().
			Str("kind", kind).
			Str("tenant", tenant).
			Str("username", usernameFrom(r.Context())).
			Int64("total", n).
			Msg("search total")
		writeJSON(w, http.StatusOK, searchTotal{Total: n})
	}
}
