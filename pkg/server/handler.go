// Package server provides a serving-side SDK for the NitroGen wire
// protocol: a handler interface for the three request types and a TCP accept
// loop that answers framed envelope requests. The production model server is
// an external collaborator; this package exists so the client has an in-repo
// counterpart for tests, smoke runs, and examples.
package server

import (
	"context"
	"sync"

	"github.com/sanxfxteam/NitroGen/pkg/protocol"
)

// Handler is implemented by types that serve the three session operations.
// Handlers returning an error produce a status=error response carrying the
// error's text; they never tear down the connection.
type Handler interface {
	// Predict maps one RGB frame to a sequence of controller actions.
	Predict(ctx context.Context, img *protocol.Image) ([]protocol.Action, error)

	// Reset clears any accumulated session state.
	Reset(ctx context.Context) error

	// Info describes the current session state.
	Info(ctx context.Context) (map[string]interface{}, error)
}

// StaticHandler answers every request from fixed data: Predict always
// returns Actions, Info always returns a copy of Session, and Reset only
// counts. It is the stub used by the test suite and `nitroctl serve`.
type StaticHandler struct {
	Actions []protocol.Action
	Session map[string]interface{}

	mu     sync.Mutex
	resets int
}

// NewStaticHandler returns a stub that predicts a single neutral action
// (centered sticks, no buttons pressed) and reports a fresh session.
func NewStaticHandler() *StaticHandler {
	return &StaticHandler{
		Actions: []protocol.Action{
			{JLeft: [2]float64{0, 0}, JRight: [2]float64{0, 0}, Buttons: []int{0, 0}},
		},
		Session: map[string]interface{}{"episode_length": 0},
	}
}

func (h *StaticHandler) Predict(_ context.Context, _ *protocol.Image) ([]protocol.Action, error) {
	return h.Actions, nil
}

func (h *StaticHandler) Reset(_ context.Context) error {
	h.mu.Lock()
	h.resets++
	h.mu.Unlock()
	return nil
}

func (h *StaticHandler) Info(_ context.Context) (map[string]interface{}, error) {
	info := make(map[string]interface{}, len(h.Session))
	for k, v := range h.Session {
		info[k] = v
	}
	return info, nil
}

// Resets reports how many reset requests the stub has acknowledged.
func (h *StaticHandler) Resets() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.resets
}
