package command

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"planhub/cli/internal/config"
	"planhub/cli/internal/db"
	"planhub/cli/internal/historydb"
	"planhub/cli/internal/planapi"
	"planhub/cli/internal/state"
)

type fakeProjects struct {
	list     []planapi.Project
	listErr  error
	detail   *planapi.ProjectDetail
	getErr   error
	getCalls int
	created  *planapi.Project
	deleted  []planapi.ID
}

func (f *fakeProjects) ListProjects(ctx context.Context) ([]planapi.Project, error) {
	return f.list, f.listErr
}

func (f *fakeProjects) GetProject(ctx context.Context, id planapi.ID) (*planapi.ProjectDetail, error) {
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.detail, nil
}

func (f *fakeProjects) CreateProject(ctx context.Context, req planapi.CreateProjectRequest) (*planapi.Project, error) {
	if f.created == nil {
		return nil, errors.New("not scripted")
	}
	return f.created, nil
}

func (f *fakeProjects) UpdateProject(ctx context.Context, id planapi.ID, req planapi.UpdateProjectRequest) (*planapi.Project, error) {
	return &planapi.Project{ID: id, Name: req.Name}, nil
}

func (f *fakeProjects) DeleteProject(ctx context.Context, id planapi.ID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeItems struct {
	epic  *planapi.Epic
	story *planapi.UserStory
	task  *planapi.Task
	err   error
}

func (f *fakeItems) CreateEpic(ctx context.Context, projectID planapi.ID, req planapi.CreateEpicRequest) (*planapi.Epic, error) {
	return f.epic, f.err
}

func (f *fakeItems) UpdateEpic(ctx context.Context, epicID planapi.ID, req planapi.UpdateEpicRequest) (*planapi.Epic, error) {
	return f.epic, f.err
}

func (f *fakeItems) DeleteEpic(ctx context.Context, epicID planapi.ID) error { return f.err }

func (f *fakeItems) CreateStory(ctx context.Context, epicID planapi.ID, req planapi.CreateStoryRequest) (*planapi.UserStory, error) {
	return f.story, f.err
}

func (f *fakeItems) UpdateStory(ctx context.Context, storyID planapi.ID, req planapi.UpdateStoryRequest) (*planapi.UserStory, error) {
	return f.story, f.err
}

func (f *fakeItems) DeleteStory(ctx context.Context, storyID planapi.ID) error { return f.err }

func (f *fakeItems) CreateTask(ctx context.Context, storyID planapi.ID, req planapi.CreateTaskRequest) (*planapi.Task, error) {
	return f.task, f.err
}

func (f *fakeItems) UpdateTask(ctx context.Context, taskID planapi.ID, req planapi.UpdateTaskRequest) (*planapi.Task, error) {
	return f.task, f.err
}

func (f *fakeItems) DeleteTask(ctx context.Context, taskID planapi.ID) error { return f.err }

type fakeChat struct {
	convs    []planapi.Conversation
	sendResp *planapi.ChatResponse
	sendErr  error
	extract  *planapi.ProjectDetail
}

func (f *fakeChat) SendMessage(ctx context.Context, projectID planapi.ID, req planapi.ChatRequest) (*planapi.ChatResponse, error) {
	return f.sendResp, f.sendErr
}

func (f *fakeChat) ListConversations(ctx context.Context, projectID planapi.ID) ([]planapi.Conversation, error) {
	return f.convs, nil
}

func (f *fakeChat) ExtractPlan(ctx context.Context, projectID planapi.ID) (*planapi.ProjectDetail, error) {
	if f.extract == nil {
		return nil, errors.New("not scripted")
	}
	return f.extract, nil
}

func testDeps(t *testing.T, projects *fakeProjects, items *fakeItems, chat *fakeChat) Deps {
	t.Helper()
	dataDir := t.TempDir()
	return Deps{
		LoadConfig: func() (config.Config, error) {
			return config.Config{BaseURL: "http://localhost:8080", LogLevel: "error", DataDir: dataDir}, nil
		},
		BuildStores: func(cfg config.Config, logger *slog.Logger) (*state.HierarchyStore, *state.ConversationStore) {
			hierarchy := state.NewHierarchyStore(projects, items, logger)
			conversation := state.NewConversationStore(chat, hierarchy, logger)
			return hierarchy, conversation
		},
		OpenHistory: func(cfg config.Config) (*historydb.Store, error) {
			gdb, err := db.OpenSQLite(filepath.Join(cfg.DataDir, "history.db"))
			if err != nil {
				return nil, err
			}
			return historydb.NewStore(gdb)
		},
		LogWriter: io.Discard,
	}
}

func runApp(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	app := BuildApp(deps)
	var out bytes.Buffer
	app.Writer = &out
	app.ErrWriter = io.Discard
	// Keep exit-coded errors as return values instead of killing the process.
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"planhub"}, args...))
	return out.String(), err
}

func sampleProjects() *fakeProjects {
	return &fakeProjects{
		list: []planapi.Project{{ID: "p1", Name: "Rocket", EpicCount: 1}},
		detail: &planapi.ProjectDetail{
			Project: planapi.Project{ID: "p1", Name: "Rocket"},
			Epics: []planapi.Epic{{
				ID: "e1", Title: "Launch", Priority: planapi.PriorityHigh, Status: planapi.StatusTodo,
				Stories: []planapi.UserStory{{
					ID: "s1", Title: "Countdown", Priority: planapi.PriorityMedium, Status: planapi.StatusTodo,
					Tasks: []planapi.Task{{ID: "t1", Title: "Fuel", Status: planapi.StatusTodo, EstimatedHours: 2}},
				}},
			}},
		},
	}
}

func TestProjectsList(t *testing.T) {
	deps := testDeps(t, sampleProjects(), &fakeItems{}, &fakeChat{})

	out, err := runApp(t, deps, "projects", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Rocket") || !strings.Contains(out, "p1") {
		t.Fatalf("output missing project row:\n%s", out)
	}
}

func TestProjectsListFailureExitsNonZero(t *testing.T) {
	projects := sampleProjects()
	projects.listErr = errors.New("boom")
	deps := testDeps(t, projects, &fakeItems{}, &fakeChat{})

	_, err := runApp(t, deps, "projects", "list")
	if err == nil || !strings.Contains(err.Error(), "Failed to load projects") {
		t.Fatalf("expected store error surfaced, got %v", err)
	}
}

func TestProjectsCreate(t *testing.T) {
	projects := sampleProjects()
	projects.created = &planapi.Project{ID: "p2", Name: "Lander"}
	deps := testDeps(t, projects, &fakeItems{}, &fakeChat{})

	out, err := runApp(t, deps, "projects", "create", "--name", "Lander")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "created project Lander (p2)") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestProjectsShowPrintsTreeAndRecordsHistory(t *testing.T) {
	deps := testDeps(t, sampleProjects(), &fakeItems{}, &fakeChat{})

	out, err := runApp(t, deps, "projects", "show", "p1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Rocket (p1)", "epic e1", "story s1", "task t1", "(2h)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestProjectsShowMissingArg(t *testing.T) {
	deps := testDeps(t, sampleProjects(), &fakeItems{}, &fakeChat{})

	_, err := runApp(t, deps, "projects", "show")
	if err == nil || !strings.Contains(err.Error(), "project-id argument is required") {
		t.Fatalf("expected missing-argument error, got %v", err)
	}
}

func TestEpicsCreatePrintsRefreshedTree(t *testing.T) {
	projects := sampleProjects()
	items := &fakeItems{epic: &planapi.Epic{ID: "e2", Title: "Orbit"}}
	deps := testDeps(t, projects, items, &fakeChat{})

	out, err := runApp(t, deps, "epics", "create", "--project", "p1", "--title", "Orbit")
	if err != nil {
		t.Fatal(err)
	}
	// One fetch to select the project, one re-fetch after the create.
	if projects.getCalls != 2 {
		t.Fatalf("expected 2 detail fetches, got %d", projects.getCalls)
	}
	if !strings.Contains(out, "Rocket (p1)") {
		t.Fatalf("tree not printed:\n%s", out)
	}
}

func TestTasksUpdatePatchesTree(t *testing.T) {
	projects := sampleProjects()
	items := &fakeItems{task: &planapi.Task{ID: "t1", Title: "Refuel", Status: planapi.StatusDone}}
	deps := testDeps(t, projects, items, &fakeChat{})

	out, err := runApp(t, deps, "tasks", "update", "--project", "p1", "--status", "done", "t1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "task t1 [DONE] Refuel") {
		t.Fatalf("patched task not in tree:\n%s", out)
	}
}

func TestChatSendPrintsLastExchange(t *testing.T) {
	chat := &fakeChat{
		sendResp: &planapi.ChatResponse{
			ConversationID: "c1",
			Message:        planapi.Message{ID: "2", Role: planapi.RoleAssistant, Content: "plan looks good"},
		},
		convs: []planapi.Conversation{{ID: "c1", Messages: []planapi.Message{
			{ID: "1", Role: planapi.RoleUser, Content: "review my plan"},
			{ID: "2", Role: planapi.RoleAssistant, Content: "plan looks good"},
		}}},
	}
	deps := testDeps(t, sampleProjects(), &fakeItems{}, chat)

	out, err := runApp(t, deps, "chat", "send", "p1", "review", "my", "plan")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ASSISTANT: plan looks good") {
		t.Fatalf("assistant reply not printed:\n%s", out)
	}
}

func TestChatSendFailureSurfacesStoreError(t *testing.T) {
	chat := &fakeChat{sendErr: errors.New("boom")}
	deps := testDeps(t, sampleProjects(), &fakeItems{}, chat)

	_, err := runApp(t, deps, "chat", "send", "p1", "hello")
	if err == nil || !strings.Contains(err.Error(), "Failed to send message") {
		t.Fatalf("expected send failure surfaced, got %v", err)
	}
}

func TestChatExtractPrintsNewPlan(t *testing.T) {
	chat := &fakeChat{extract: &planapi.ProjectDetail{
		Project: planapi.Project{ID: "p1", Name: "Rocket v2"},
		Epics:   []planapi.Epic{{ID: "e9", Title: "Extracted"}},
	}}
	deps := testDeps(t, sampleProjects(), &fakeItems{}, chat)

	out, err := runApp(t, deps, "chat", "extract", "p1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Rocket v2 (p1)") || !strings.Contains(out, "epic e9") {
		t.Fatalf("extracted plan not printed:\n%s", out)
	}
}

func TestRecentListsOpenedProjects(t *testing.T) {
	deps := testDeps(t, sampleProjects(), &fakeItems{}, &fakeChat{})

	// Same DataDir across invocations so the history survives.
	if _, err := runApp(t, deps, "projects", "show", "p1"); err != nil {
		t.Fatal(err)
	}
	out, err := runApp(t, deps, "recent")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "p1") || !strings.Contains(out, "Rocket") {
		t.Fatalf("history entry missing:\n%s", out)
	}

	if _, err := runApp(t, deps, "recent", "clear"); err != nil {
		t.Fatal(err)
	}
	out, err = runApp(t, deps, "recent")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "p1") {
		t.Fatalf("history should be empty after clear:\n%s", out)
	}
}
