// Package planwatch follows a project's server-side event stream and nudges
// the local stores to re-fetch when the plan or the chat changes under them.
package planwatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"

	"planhub/cli/internal/planapi"
	"planhub/cli/internal/state"
)

// Event types pushed by the server on the per-project stream.
const (
	EventPlanUpdated    = "plan.updated"
	EventMessageCreated = "message.created"
)

// Event is the wire envelope for a stream notification.
type Event struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Socket is one live event connection.
type Socket interface {
	ReadText(ctx context.Context) (string, error)
	WriteText(ctx context.Context, text string) error
	Close() error
}

// Dialer opens a Socket against an absolute ws:// or wss:// URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

type Watcher struct {
	dialer       Dialer
	hierarchy    *state.HierarchyStore
	conversation *state.ConversationStore
	logger       *slog.Logger
}

func NewWatcher(dialer Dialer, hierarchy *state.HierarchyStore, conversation *state.ConversationStore, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{dialer: dialer, hierarchy: hierarchy, conversation: conversation, logger: logger}
}

// Run subscribes to the project's event stream and reacts until the context
// ends or the socket closes. There is no reconnect: a dropped stream returns
// and the caller decides whether to watch again.
func (w *Watcher) Run(ctx context.Context, baseURL string, projectID planapi.ID) error {
	url, err := StreamURL(baseURL, projectID)
	if err != nil {
		return err
	}
	sock, err := w.dialer.Dial(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = sock.Close() }()

	w.logger.Info("watching project events", "project_id", projectID, "url", url)
	for {
		text, err := sock.ReadText(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			w.logger.Warn("dropping malformed event", "error", err)
			continue
		}
		w.handle(ctx, ev, projectID)
	}
}

func (w *Watcher) handle(ctx context.Context, ev Event, projectID planapi.ID) {
	switch ev.Type {
	case EventPlanUpdated:
		w.logger.Debug("plan updated upstream", "event_id", ev.ID)
		w.hierarchy.RefreshSelectedProject(ctx)
	case EventMessageCreated:
		w.logger.Debug("message created upstream", "event_id", ev.ID)
		w.conversation.LoadConversation(ctx, projectID)
	default:
		w.logger.Debug("ignoring event", "type", ev.Type, "event_id", ev.ID)
	}
}

// StreamURL derives the ws endpoint for a project's events from the API base
// URL.
func StreamURL(baseURL string, projectID planapi.ID) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
	default:
		return "", errors.New("base url must be http(s) or ws(s)")
	}
	return base + "/api/v1/projects/" + string(projectID) + "/events", nil
}
