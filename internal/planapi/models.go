package planapi

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
)

type MessageRole string

const (
	RoleUser      MessageRole = "USER"
	RoleAssistant MessageRole = "ASSISTANT"
	RoleSystem    MessageRole = "SYSTEM"
)

// ID is an opaque server-assigned identifier. The server has shipped both
// numeric and string ids for the same entities, so decoding accepts either;
// encoding always emits a string.
type ID string

func (id ID) String() string { return string(id) }

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(id))
}

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Num reports the id as an integer when it parses as one.
func (id ID) Num() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Time decodes server timestamps tolerantly: RFC 3339 with or without
// fractional seconds or zone, or a bare date-time. Anything unparseable
// decodes to the zero value instead of failing the whole payload.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func NewTime(t time.Time) Time { return Time{Time: t} }

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Time) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

type Project struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   Time   `json:"createdAt"`
	UpdatedAt   Time   `json:"updatedAt"`
	EpicCount   int    `json:"epicCount,omitempty"`
}

type ProjectDetail struct {
	Project
	Epics []Epic `json:"epics"`
}

type Epic struct {
	ID          ID          `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Priority    Priority    `json:"priority"`
	Status      Status      `json:"status"`
	Order       int         `json:"order"`
	Stories     []UserStory `json:"stories"`
}

type UserStory struct {
	ID       ID       `json:"id"`
	Title    string   `json:"title"`
	AsA      string   `json:"asA,omitempty"`
	IWant    string   `json:"iWant,omitempty"`
	SoThat   string   `json:"soThat,omitempty"`
	Priority Priority `json:"priority"`
	Status   Status   `json:"status"`
	Order    int      `json:"order"`
	Tasks    []Task   `json:"tasks"`
}

type Task struct {
	ID             ID      `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	Status         Status  `json:"status"`
	EstimatedHours float64 `json:"estimatedHours,omitempty"`
	Order          int     `json:"order"`
}

type Message struct {
	ID        ID          `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt Time        `json:"createdAt"`
}

type Conversation struct {
	ID        ID        `json:"id"`
	ProjectID ID        `json:"projectId"`
	Messages  []Message `json:"messages"`
	CreatedAt Time      `json:"createdAt"`
}

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID ID     `json:"conversationId,omitempty"`
}

type ChatResponse struct {
	ConversationID ID      `json:"conversationId"`
	Message        Message `json:"message"`
}

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type CreateEpicRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

type UpdateEpicRequest struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	Status      Status   `json:"status,omitempty"`
	Order       *int     `json:"order,omitempty"`
}

type CreateStoryRequest struct {
	Title    string   `json:"title"`
	AsA      string   `json:"asA,omitempty"`
	IWant    string   `json:"iWant,omitempty"`
	SoThat   string   `json:"soThat,omitempty"`
	Priority Priority `json:"priority,omitempty"`
}

type UpdateStoryRequest struct {
	Title    string   `json:"title,omitempty"`
	AsA      string   `json:"asA,omitempty"`
	IWant    string   `json:"iWant,omitempty"`
	SoThat   string   `json:"soThat,omitempty"`
	Priority Priority `json:"priority,omitempty"`
	Status   Status   `json:"status,omitempty"`
	Order    *int     `json:"order,omitempty"`
}

type CreateTaskRequest struct {
	Title          string  `json:"title"`
	Description    string  `json:"description,omitempty"`
	EstimatedHours float64 `json:"estimatedHours,omitempty"`
}

type UpdateTaskRequest struct {
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Status         Status   `json:"status,omitempty"`
	EstimatedHours *float64 `json:"estimatedHours,omitempty"`
	Order          *int     `json:"order,omitempty"`
}
