package state

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"planhub/cli/internal/planapi"
)

// ChatGateway is the slice of the transport layer the conversation store
// needs. ListConversations returns newest conversation first.
type ChatGateway interface {
	SendMessage(ctx context.Context, projectID planapi.ID, req planapi.ChatRequest) (*planapi.ChatResponse, error)
	ListConversations(ctx context.Context, projectID planapi.ID) ([]planapi.Conversation, error)
	ExtractPlan(ctx context.Context, projectID planapi.ID) (*planapi.ProjectDetail, error)
}

// ConversationStore owns the chat transcript attached to one project. User
// messages are appended optimistically before the round trip and rolled back
// by id when the send fails; every successful send is followed by a full
// history re-fetch that is folded into the live list, never swapped in over
// it. The store writes into the hierarchy store in exactly one place: plan
// extraction replaces the selected project wholesale.
type ConversationStore struct {
	chat      ChatGateway
	hierarchy *HierarchyStore
	logger    *slog.Logger

	// Seams for deterministic tests.
	now   func() time.Time
	newID func() string

	mu             sync.Mutex
	messages       []planapi.Message
	conversationID planapi.ID
	sending        bool
	errMsg         string

	subs subscribers
}

func NewConversationStore(chat ChatGateway, hierarchy *HierarchyStore, logger *slog.Logger) *ConversationStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ConversationStore{
		chat:      chat,
		hierarchy: hierarchy,
		logger:    logger,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Messages returns the reconciled transcript, oldest first.
func (s *ConversationStore) Messages() []planapi.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]planapi.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *ConversationStore) ConversationID() planapi.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *ConversationStore) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// Err returns the message of the most recent failed operation, or "".
func (s *ConversationStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Subscribe registers fn to run after every state change and returns an
// unsubscribe func.
func (s *ConversationStore) Subscribe(fn func()) func() {
	return s.subs.add(fn)
}

// LoadConversation rebuilds the transcript from the server's conversation
// history. The newest conversation's id becomes the active one; messages from
// all conversations render oldest conversation first, so the newest-first
// server order is reversed before flattening. The fetched history is folded
// into the live list rather than swapped in over it, so a message appended
// while the fetch was in flight survives; the live copy of a duplicated id
// wins. On failure the stale transcript stays: old data beats an empty
// screen.
func (s *ConversationStore) LoadConversation(ctx context.Context, projectID planapi.ID) {
	convs, err := s.chat.ListConversations(ctx, projectID)
	if err != nil {
		s.fail("Failed to load conversation", err)
		return
	}

	var activeID planapi.ID
	if len(convs) > 0 {
		activeID = convs[0].ID
	}
	var fetched []planapi.Message
	for i := len(convs) - 1; i >= 0; i-- {
		fetched = append(fetched, convs[i].Messages...)
	}

	s.mu.Lock()
	combined := make([]planapi.Message, 0, len(s.messages)+len(fetched))
	combined = append(combined, s.messages...)
	combined = append(combined, fetched...)
	s.conversationID = activeID
	s.messages = reconcileMessages(combined, s.newID, s.now())
	s.errMsg = ""
	s.mu.Unlock()
	s.subs.notify()
}

// SendMessage appends an optimistic USER message, ships the text to the
// assistant, folds in the reply and then re-fetches the authoritative
// history. A blank text is silently ignored. On failure the optimistic
// message is removed by id and the error recorded; what the user typed is
// the caller's to keep.
func (s *ConversationStore) SendMessage(ctx context.Context, projectID planapi.ID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	optimistic := planapi.Message{
		ID:        planapi.ID(s.newID()),
		Role:      planapi.RoleUser,
		Content:   text,
		CreatedAt: planapi.NewTime(s.now()),
	}

	s.mu.Lock()
	s.sending = true
	s.errMsg = ""
	s.messages = append(s.messages, optimistic)
	convID := s.conversationID
	s.mu.Unlock()
	s.subs.notify()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		s.subs.notify()
	}()

	resp, err := s.chat.SendMessage(ctx, projectID, planapi.ChatRequest{Message: text, ConversationID: convID})
	if err != nil {
		s.mu.Lock()
		s.messages = removeMessageByID(s.messages, optimistic.ID)
		s.mu.Unlock()
		s.fail("Failed to send message", err)
		return
	}

	s.mu.Lock()
	if resp.ConversationID != "" {
		s.conversationID = resp.ConversationID
	}
	assistant := resp.Message
	if assistant.Role == "" {
		assistant.Role = planapi.RoleAssistant
	}
	s.messages = reconcileMessages(append(s.messages, assistant), s.newID, s.now())
	s.mu.Unlock()
	s.subs.notify()

	// Backstop: fold in whatever the server now holds. This can reorder,
	// dedupe against server ids, or pull in messages from another session.
	s.LoadConversation(ctx, projectID)
}

// ExtractPlan asks the assistant to turn the conversation into a plan and
// replaces the hierarchy store's selected project with the result, no merge.
func (s *ConversationStore) ExtractPlan(ctx context.Context, projectID planapi.ID) {
	s.mu.Lock()
	s.sending = true
	s.errMsg = ""
	s.mu.Unlock()
	s.subs.notify()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
		s.subs.notify()
	}()

	detail, err := s.chat.ExtractPlan(ctx, projectID)
	if err != nil {
		s.fail("Failed to extract plan", err)
		return
	}
	s.hierarchy.SetSelectedProject(detail)
}

// ClearChat resets the transcript; used when navigating away from a project.
func (s *ConversationStore) ClearChat() {
	s.mu.Lock()
	s.messages = nil
	s.conversationID = ""
	s.errMsg = ""
	s.mu.Unlock()
	s.subs.notify()
}

func (s *ConversationStore) fail(msg string, err error) {
	s.logger.Warn("conversation operation failed", "reason", msg, "error", err)
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.subs.notify()
}
