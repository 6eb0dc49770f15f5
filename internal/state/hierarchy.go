// Package state holds the client-side mirror of server-owned planning data:
// a hierarchy store for the project/epic/story/task tree and a conversation
// store for the per-project assistant chat. The server stays authoritative;
// both stores apply optimistic updates and reconcile against re-fetches.
package state

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"planhub/cli/internal/planapi"
)

// ProjectGateway is the slice of the transport layer the hierarchy store
// needs for project-level calls.
type ProjectGateway interface {
	ListProjects(ctx context.Context) ([]planapi.Project, error)
	GetProject(ctx context.Context, id planapi.ID) (*planapi.ProjectDetail, error)
	CreateProject(ctx context.Context, req planapi.CreateProjectRequest) (*planapi.Project, error)
	UpdateProject(ctx context.Context, id planapi.ID, req planapi.UpdateProjectRequest) (*planapi.Project, error)
	DeleteProject(ctx context.Context, id planapi.ID) error
}

// PlanItemGateway is the slice of the transport layer covering epics, stories
// and tasks.
type PlanItemGateway interface {
	CreateEpic(ctx context.Context, projectID planapi.ID, req planapi.CreateEpicRequest) (*planapi.Epic, error)
	UpdateEpic(ctx context.Context, epicID planapi.ID, req planapi.UpdateEpicRequest) (*planapi.Epic, error)
	DeleteEpic(ctx context.Context, epicID planapi.ID) error
	CreateStory(ctx context.Context, epicID planapi.ID, req planapi.CreateStoryRequest) (*planapi.UserStory, error)
	UpdateStory(ctx context.Context, storyID planapi.ID, req planapi.UpdateStoryRequest) (*planapi.UserStory, error)
	DeleteStory(ctx context.Context, storyID planapi.ID) error
	CreateTask(ctx context.Context, storyID planapi.ID, req planapi.CreateTaskRequest) (*planapi.Task, error)
	UpdateTask(ctx context.Context, taskID planapi.ID, req planapi.UpdateTaskRequest) (*planapi.Task, error)
	DeleteTask(ctx context.Context, taskID planapi.ID) error
}

// HierarchyStore owns the project list and the selected project's detail
// tree. Every operation follows the same protocol: raise loading, clear the
// error, call the gateway, mutate owned state on success or record a flat
// error message on failure, drop loading. Failures never clear prior data.
//
// Operations are not mutually exclusive; two overlapping calls race on the
// loading flag and the last one to finish wins. That mirrors a single-user
// UI event loop and is accepted rather than serialized.
type HierarchyStore struct {
	projects ProjectGateway
	items    PlanItemGateway
	logger   *slog.Logger

	mu          sync.Mutex
	projectList []planapi.Project
	selected    *planapi.ProjectDetail
	loading     bool
	errMsg      string

	subs subscribers
}

func NewHierarchyStore(projects ProjectGateway, items PlanItemGateway, logger *slog.Logger) *HierarchyStore {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HierarchyStore{projects: projects, items: items, logger: logger}
}

// Projects returns the project list in display order, newest first for
// locally created entries.
func (s *HierarchyStore) Projects() []planapi.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]planapi.Project, len(s.projectList))
	copy(out, s.projectList)
	return out
}

// SelectedProject returns the currently selected detail tree, or nil. The
// returned tree is an immutable snapshot; the store never mutates it in
// place, it replaces it.
func (s *HierarchyStore) SelectedProject() *planapi.ProjectDetail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

func (s *HierarchyStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Err returns the message of the most recent failed operation, or "".
func (s *HierarchyStore) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Subscribe registers fn to run after every state change and returns an
// unsubscribe func.
func (s *HierarchyStore) Subscribe(fn func()) func() {
	return s.subs.add(fn)
}

func (s *HierarchyStore) begin() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
	s.subs.notify()
}

func (s *HierarchyStore) end() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.subs.notify()
}

func (s *HierarchyStore) fail(msg string, err error) {
	s.logger.Warn("hierarchy operation failed", "reason", msg, "error", err)
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.subs.notify()
}

// LoadProjects replaces the project list wholesale with the server's list.
func (s *HierarchyStore) LoadProjects(ctx context.Context) {
	s.begin()
	defer s.end()
	list, err := s.projects.ListProjects(ctx)
	if err != nil {
		s.fail("Failed to load projects", err)
		return
	}
	s.mu.Lock()
	s.projectList = list
	s.mu.Unlock()
	s.subs.notify()
}

// LoadProjectDetail replaces the selected project wholesale. Tree shape and
// ordering are server-decided, so there is no partial merge on navigation.
func (s *HierarchyStore) LoadProjectDetail(ctx context.Context, id planapi.ID) {
	s.begin()
	defer s.end()
	detail, err := s.projects.GetProject(ctx, id)
	if err != nil {
		s.fail("Failed to load project details", err)
		return
	}
	s.mu.Lock()
	s.selected = detail
	s.mu.Unlock()
	s.subs.notify()
}

// CreateProject prepends the created project to the in-memory list without a
// full reload and returns it, or returns nil on failure.
func (s *HierarchyStore) CreateProject(ctx context.Context, req planapi.CreateProjectRequest) *planapi.Project {
	s.begin()
	defer s.end()
	created, err := s.projects.CreateProject(ctx, req)
	if err != nil {
		s.fail("Failed to create project", err)
		return nil
	}
	s.mu.Lock()
	s.projectList = append([]planapi.Project{*created}, s.projectList...)
	s.mu.Unlock()
	s.subs.notify()
	return created
}

// UpdateProject patches the matching list entry and, when it is the selected
// project, the detail header. The epic tree under the selection is kept.
func (s *HierarchyStore) UpdateProject(ctx context.Context, id planapi.ID, req planapi.UpdateProjectRequest) {
	s.begin()
	defer s.end()
	updated, err := s.projects.UpdateProject(ctx, id, req)
	if err != nil {
		s.fail("Failed to update project", err)
		return
	}
	s.mu.Lock()
	for i := range s.projectList {
		if s.projectList[i].ID == updated.ID {
			s.projectList[i] = *updated
			break
		}
	}
	if s.selected != nil && s.selected.ID == updated.ID {
		next := *s.selected
		next.Project = *updated
		s.selected = &next
	}
	s.mu.Unlock()
	s.subs.notify()
}

// DeleteProject removes the entry from the list and clears the selection if
// it pointed at the deleted project.
func (s *HierarchyStore) DeleteProject(ctx context.Context, id planapi.ID) {
	s.begin()
	defer s.end()
	if err := s.projects.DeleteProject(ctx, id); err != nil {
		s.fail("Failed to delete project", err)
		return
	}
	s.mu.Lock()
	kept := s.projectList[:0:0]
	for _, p := range s.projectList {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.projectList = kept
	if s.selected != nil && s.selected.ID == id {
		s.selected = nil
	}
	s.mu.Unlock()
	s.subs.notify()
}

// CreateEpic creates under the project and re-fetches the whole detail tree.
// Insertion position and order keys are server-decided, so no synthetic node
// is inserted locally.
func (s *HierarchyStore) CreateEpic(ctx context.Context, projectID planapi.ID, req planapi.CreateEpicRequest) {
	s.begin()
	defer s.end()
	if _, err := s.items.CreateEpic(ctx, projectID, req); err != nil {
		s.fail("Failed to create epic", err)
		return
	}
	s.refetchSelected(ctx)
}

// UpdateEpic patches the epic in the selected tree, keeping its stories when
// the response carries none. A miss on a stale tree is a no-op.
func (s *HierarchyStore) UpdateEpic(ctx context.Context, epicID planapi.ID, req planapi.UpdateEpicRequest) {
	s.begin()
	defer s.end()
	updated, err := s.items.UpdateEpic(ctx, epicID, req)
	if err != nil {
		s.fail("Failed to update epic", err)
		return
	}
	s.patchSelected(func(d *planapi.ProjectDetail) (*planapi.ProjectDetail, bool) {
		return patchEpic(d, *updated)
	})
}

func (s *HierarchyStore) DeleteEpic(ctx context.Context, epicID planapi.ID) {
	s.begin()
	defer s.end()
	if err := s.items.DeleteEpic(ctx, epicID); err != nil {
		s.fail("Failed to delete epic", err)
		return
	}
	s.refetchSelected(ctx)
}

func (s *HierarchyStore) CreateStory(ctx context.Context, epicID planapi.ID, req planapi.CreateStoryRequest) {
	s.begin()
	defer s.end()
	if _, err := s.items.CreateStory(ctx, epicID, req); err != nil {
		s.fail("Failed to create story", err)
		return
	}
	s.refetchSelected(ctx)
}

func (s *HierarchyStore) UpdateStory(ctx context.Context, storyID planapi.ID, req planapi.UpdateStoryRequest) {
	s.begin()
	defer s.end()
	updated, err := s.items.UpdateStory(ctx, storyID, req)
	if err != nil {
		s.fail("Failed to update story", err)
		return
	}
	s.patchSelected(func(d *planapi.ProjectDetail) (*planapi.ProjectDetail, bool) {
		return patchStory(d, *updated)
	})
}

func (s *HierarchyStore) DeleteStory(ctx context.Context, storyID planapi.ID) {
	s.begin()
	defer s.end()
	if err := s.items.DeleteStory(ctx, storyID); err != nil {
		s.fail("Failed to delete story", err)
		return
	}
	s.refetchSelected(ctx)
}

func (s *HierarchyStore) CreateTask(ctx context.Context, storyID planapi.ID, req planapi.CreateTaskRequest) {
	s.begin()
	defer s.end()
	if _, err := s.items.CreateTask(ctx, storyID, req); err != nil {
		s.fail("Failed to create task", err)
		return
	}
	s.refetchSelected(ctx)
}

func (s *HierarchyStore) UpdateTask(ctx context.Context, taskID planapi.ID, req planapi.UpdateTaskRequest) {
	s.begin()
	defer s.end()
	updated, err := s.items.UpdateTask(ctx, taskID, req)
	if err != nil {
		s.fail("Failed to update task", err)
		return
	}
	s.patchSelected(func(d *planapi.ProjectDetail) (*planapi.ProjectDetail, bool) {
		return patchTask(d, *updated)
	})
}

func (s *HierarchyStore) DeleteTask(ctx context.Context, taskID planapi.ID) {
	s.begin()
	defer s.end()
	if err := s.items.DeleteTask(ctx, taskID); err != nil {
		s.fail("Failed to delete task", err)
		return
	}
	s.refetchSelected(ctx)
}

// RefreshSelectedProject re-fetches the detail tree for the current
// selection; a no-op with nothing selected. If the selection changes while
// the fetch is in flight, the in-flight result still lands: the UI reflects
// the most recent load attempt to finish, not the most recently issued one.
func (s *HierarchyStore) RefreshSelectedProject(ctx context.Context) {
	s.mu.Lock()
	var id planapi.ID
	if s.selected != nil {
		id = s.selected.ID
	}
	s.mu.Unlock()
	if id == "" {
		return
	}
	s.LoadProjectDetail(ctx, id)
}

// SetSelectedProject replaces the selection wholesale. This is the entry
// point for chat-driven plan extraction, whose output is fully authoritative.
func (s *HierarchyStore) SetSelectedProject(detail *planapi.ProjectDetail) {
	s.mu.Lock()
	s.selected = detail
	s.mu.Unlock()
	s.subs.notify()
}

// refetchSelected re-fetches the detail tree without touching loading
// or error again; the caller already owns the operation protocol.
func (s *HierarchyStore) refetchSelected(ctx context.Context) {
	s.mu.Lock()
	var id planapi.ID
	if s.selected != nil {
		id = s.selected.ID
	}
	s.mu.Unlock()
	if id == "" {
		return
	}
	detail, err := s.projects.GetProject(ctx, id)
	if err != nil {
		s.fail("Failed to load project details", err)
		return
	}
	s.mu.Lock()
	s.selected = detail
	s.mu.Unlock()
	s.subs.notify()
}

func (s *HierarchyStore) patchSelected(patch func(*planapi.ProjectDetail) (*planapi.ProjectDetail, bool)) {
	s.mu.Lock()
	if s.selected == nil {
		s.mu.Unlock()
		return
	}
	next, found := patch(s.selected)
	if !found {
		// Stale tree: the mutated node is not in the current snapshot.
		// Nothing to patch, and not an error.
		s.mu.Unlock()
		return
	}
	s.selected = next
	s.mu.Unlock()
	s.subs.notify()
}
