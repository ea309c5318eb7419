// Package realtime pushes workspace change notifications over websockets.
package realtime

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Scan360AI/rnd-credit-manager/tenant"
	json "github.com/goccy/go-json"
	"github.com/olahol/melody"
)

var log = slog.Default().With(slog.String("layer", "realtime"))

const tenantKey = "tenant"

// Event tells clients that the tenant's report changed.
type Event struct {
	Type     string `json:"type"`
	Tenant   string `json:"tenant"`
	Revision uint64 `json:"revision"`
}

// Hub broadcasts events to the sessions of one tenant.
type Hub struct {
	m *melody.Melody
}

func NewHub() *Hub {
	h := &Hub{m: melody.New()}
	h.m.HandleConnect(func(s *melody.Session) {
		t, _ := s.Get(tenantKey)
		log.Info("ws:connect", slog.Any("tenant", t))
	})
	return h
}

// ServeHTTP upgrades the request. The tenant comes from the tenant middleware.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id, _ := tenant.FromContext(r.Context())
	if err := h.m.HandleRequestWithKeys(w, r, map[string]any{tenantKey: id}); err != nil {
		log.Warn("ws:upgrade", slog.String("err", err.Error()))
	}
}

// Notify matches engine.Observer.
func (h *Hub) Notify(tenantID string, revision uint64) {
	msg, err := json.Marshal(Event{Type: "report", Tenant: tenantID, Revision: revision})
	if err != nil {
		return
	}
	err = h.m.BroadcastFilter(msg, func(s *melody.Session) bool {
		t, ok := s.Get(tenantKey)
		return ok && t == tenantID
	})
	if err != nil && !errors.Is(err, melody.ErrClosed) {
		log.Warn("ws:broadcast", slog.String("err", err.Error()))
	}
}

func (h *Hub) Close() error { return h.m.Close() }
