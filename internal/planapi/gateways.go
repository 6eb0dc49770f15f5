package planapi

import (
	"context"
	"net/http"
)

// ProjectGateway covers the project collection endpoints.
type ProjectGateway struct {
	c *Client
}

func NewProjectGateway(c *Client) *ProjectGateway {
	return &ProjectGateway{c: c}
}

func (g *ProjectGateway) ListProjects(ctx context.Context) ([]Project, error) {
	var out []Project
	if err := g.c.do(ctx, http.MethodGet, "/api/v1/projects", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *ProjectGateway) GetProject(ctx context.Context, id ID) (*ProjectDetail, error) {
	var out ProjectDetail
	if err := g.c.do(ctx, http.MethodGet, "/api/v1/projects/"+pathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *ProjectGateway) CreateProject(ctx context.Context, req CreateProjectRequest) (*Project, error) {
	var out Project
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/projects", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *ProjectGateway) UpdateProject(ctx context.Context, id ID, req UpdateProjectRequest) (*Project, error) {
	var out Project
	if err := g.c.do(ctx, http.MethodPut, "/api/v1/projects/"+pathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *ProjectGateway) DeleteProject(ctx context.Context, id ID) error {
	return g.c.do(ctx, http.MethodDelete, "/api/v1/projects/"+pathEscape(id), nil, nil)
}

// PlanItemGateway covers epic, story and task endpoints. Creation nests under
// the parent; update and delete address the item directly.
type PlanItemGateway struct {
	c *Client
}

func NewPlanItemGateway(c *Client) *PlanItemGateway {
	return &PlanItemGateway{c: c}
}

func (g *PlanItemGateway) CreateEpic(ctx context.Context, projectID ID, req CreateEpicRequest) (*Epic, error) {
	var out Epic
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/projects/"+pathEscape(projectID)+"/epics", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) UpdateEpic(ctx context.Context, epicID ID, req UpdateEpicRequest) (*Epic, error) {
	var out Epic
	if err := g.c.do(ctx, http.MethodPut, "/api/v1/epics/"+pathEscape(epicID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) DeleteEpic(ctx context.Context, epicID ID) error {
	return g.c.do(ctx, http.MethodDelete, "/api/v1/epics/"+pathEscape(epicID), nil, nil)
}

func (g *PlanItemGateway) CreateStory(ctx context.Context, epicID ID, req CreateStoryRequest) (*UserStory, error) {
	var out UserStory
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/epics/"+pathEscape(epicID)+"/stories", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) UpdateStory(ctx context.Context, storyID ID, req UpdateStoryRequest) (*UserStory, error) {
	var out UserStory
	if err := g.c.do(ctx, http.MethodPut, "/api/v1/stories/"+pathEscape(storyID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) DeleteStory(ctx context.Context, storyID ID) error {
	return g.c.do(ctx, http.MethodDelete, "/api/v1/stories/"+pathEscape(storyID), nil, nil)
}

func (g *PlanItemGateway) CreateTask(ctx context.Context, storyID ID, req CreateTaskRequest) (*Task, error) {
	var out Task
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/stories/"+pathEscape(storyID)+"/tasks", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) UpdateTask(ctx context.Context, taskID ID, req UpdateTaskRequest) (*Task, error) {
	var out Task
	if err := g.c.do(ctx, http.MethodPut, "/api/v1/tasks/"+pathEscape(taskID), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *PlanItemGateway) DeleteTask(ctx context.Context, taskID ID) error {
	return g.c.do(ctx, http.MethodDelete, "/api/v1/tasks/"+pathEscape(taskID), nil, nil)
}

// ChatGateway covers the per-project assistant conversation endpoints.
type ChatGateway struct {
	c *Client
}

func NewChatGateway(c *Client) *ChatGateway {
	return &ChatGateway{c: c}
}

func (g *ChatGateway) SendMessage(ctx context.Context, projectID ID, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/projects/"+pathEscape(projectID)+"/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListConversations returns the project's conversations newest first.
func (g *ChatGateway) ListConversations(ctx context.Context, projectID ID) ([]Conversation, error) {
	var out []Conversation
	if err := g.c.do(ctx, http.MethodGet, "/api/v1/projects/"+pathEscape(projectID)+"/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *ChatGateway) ExtractPlan(ctx context.Context, projectID ID) (*ProjectDetail, error) {
	var out ProjectDetail
	if err := g.c.do(ctx, http.MethodPost, "/api/v1/projects/"+pathEscape(projectID)+"/extract-plan", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
