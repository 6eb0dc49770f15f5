// Package command builds the planhub CLI. Every mutating command goes
// through the stores, never straight to a gateway, so command output always
// reflects the same reconciled state a UI subscriber would see.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/urfave/cli/v2"

	"planhub/cli/internal/config"
	"planhub/cli/internal/db"
	"planhub/cli/internal/historydb"
	"planhub/cli/internal/logging"
	"planhub/cli/internal/planapi"
	"planhub/cli/internal/planwatch"
	"planhub/cli/internal/state"
)

// Deps lets tests swap the edges. Nil fields fall back to the real thing.
type Deps struct {
	LoadConfig  func() (config.Config, error)
	BuildStores func(cfg config.Config, logger *slog.Logger) (*state.HierarchyStore, *state.ConversationStore)
	OpenHistory func(cfg config.Config) (*historydb.Store, error)
	Dialer      planwatch.Dialer
	LogWriter   io.Writer
}

type runtime struct {
	cfg          config.Config
	logger       *slog.Logger
	hierarchy    *state.HierarchyStore
	conversation *state.ConversationStore
	deps         Deps
}

func (d Deps) runtime() (*runtime, error) {
	loadConfig := d.LoadConfig
	if loadConfig == nil {
		loadConfig = func() (config.Config, error) {
			dir, err := config.DefaultDir()
			if err != nil {
				return config.Config{}, err
			}
			return config.LoadOrInit(dir)
		}
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(logging.Options{Level: cfg.LogLevel, Writer: d.LogWriter, Component: "planhub"})

	buildStores := d.BuildStores
	if buildStores == nil {
		buildStores = realStores
	}
	hierarchy, conversation := buildStores(cfg, logger)
	return &runtime{cfg: cfg, logger: logger, hierarchy: hierarchy, conversation: conversation, deps: d}, nil
}

func httpClient(cfg config.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTPTimeout()}
}

func realStores(cfg config.Config, logger *slog.Logger) (*state.HierarchyStore, *state.ConversationStore) {
	client := planapi.NewClient(cfg.BaseURL,
		planapi.WithLogger(logger),
		planapi.WithHTTPClient(httpClient(cfg)),
	)
	hierarchy := state.NewHierarchyStore(planapi.NewProjectGateway(client), planapi.NewPlanItemGateway(client), logger)
	conversation := state.NewConversationStore(planapi.NewChatGateway(client), hierarchy, logger)
	return hierarchy, conversation
}

func (r *runtime) openHistory() (*historydb.Store, error) {
	open := r.deps.OpenHistory
	if open == nil {
		open = func(cfg config.Config) (*historydb.Store, error) {
			gdb, err := db.OpenSQLite(cfg.HistoryDBPath())
			if err != nil {
				return nil, err
			}
			return historydb.NewStore(gdb)
		}
	}
	return open(r.cfg)
}

func (r *runtime) dialer() planwatch.Dialer {
	if r.deps.Dialer != nil {
		return r.deps.Dialer
	}
	return planwatch.RealDialer{}
}

// recordOpen is best-effort: history trouble never fails the command.
func (r *runtime) recordOpen(projectID planapi.ID, name string) {
	store, err := r.openHistory()
	if err != nil {
		r.logger.Warn("history unavailable", "error", err)
		return
	}
	if err := store.RecordOpen(string(projectID), name); err != nil {
		r.logger.Warn("recording project open failed", "error", err)
	}
}

// BuildApp wires the command tree.
func BuildApp(deps Deps) *cli.App {
	return &cli.App{
		Name:  "planhub",
		Usage: "plan projects and talk to the planning assistant",
		Commands: []*cli.Command{
			projectsCommand(deps),
			epicsCommand(deps),
			storiesCommand(deps),
			tasksCommand(deps),
			chatCommand(deps),
			recentCommand(deps),
			watchCommand(deps),
		},
	}
}

func projectsCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "manage projects",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list all projects",
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.hierarchy.LoadProjects(ctx.Context)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printProjects(ctx.App.Writer, r.hierarchy.Projects())
					return nil
				},
			},
			{
				Name:  "create",
				Usage: "create a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Required: true},
					&cli.StringFlag{Name: "description"},
				},
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					created := r.hierarchy.CreateProject(ctx.Context, planapi.CreateProjectRequest{
						Name:        ctx.String("name"),
						Description: ctx.String("description"),
					})
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "created project %s (%s)\n", created.Name, created.ID)
					return nil
				},
			},
			{
				Name:      "show",
				Usage:     "show a project's full plan tree",
				ArgsUsage: "<project-id>",
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.hierarchy.LoadProjectDetail(ctx.Context, id)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					detail := r.hierarchy.SelectedProject()
					r.recordOpen(detail.ID, detail.Name)
					printTree(ctx.App.Writer, detail)
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "update a project's name or description",
				ArgsUsage: "<project-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "description"},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.hierarchy.UpdateProject(ctx.Context, id, planapi.UpdateProjectRequest{
						Name:        ctx.String("name"),
						Description: ctx.String("description"),
					})
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "updated project %s\n", id)
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a project",
				ArgsUsage: "<project-id>",
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.hierarchy.DeleteProject(ctx.Context, id)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					fmt.Fprintf(ctx.App.Writer, "deleted project %s\n", id)
					return nil
				},
			},
		},
	}
}

func epicsCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "epics",
		Usage: "manage epics inside a project",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create an epic under a project",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "priority", Value: string(planapi.PriorityMedium)},
				},
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					projectID := planapi.ID(ctx.String("project"))
					if err := selectProject(ctx.Context, r, projectID); err != nil {
						return err
					}
					r.hierarchy.CreateEpic(ctx.Context, projectID, planapi.CreateEpicRequest{
						Title:       ctx.String("title"),
						Description: ctx.String("description"),
						Priority:    planapi.Priority(strings.ToUpper(ctx.String("priority"))),
					})
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "update an epic",
				ArgsUsage: "<epic-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "status"},
					&cli.IntFlag{Name: "order"},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "epic-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					req := planapi.UpdateEpicRequest{
						Title:       ctx.String("title"),
						Description: ctx.String("description"),
						Priority:    planapi.Priority(strings.ToUpper(ctx.String("priority"))),
						Status:      planapi.Status(strings.ToUpper(ctx.String("status"))),
					}
					if ctx.IsSet("order") {
						order := ctx.Int("order")
						req.Order = &order
					}
					r.hierarchy.UpdateEpic(ctx.Context, id, req)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an epic",
				ArgsUsage: "<epic-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "epic-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					r.hierarchy.DeleteEpic(ctx.Context, id)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
		},
	}
}

func storiesCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "stories",
		Usage: "manage user stories inside an epic",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a story under an epic",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "epic", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "as-a"},
					&cli.StringFlag{Name: "i-want"},
					&cli.StringFlag{Name: "so-that"},
					&cli.StringFlag{Name: "priority", Value: string(planapi.PriorityMedium)},
				},
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					r.hierarchy.CreateStory(ctx.Context, planapi.ID(ctx.String("epic")), planapi.CreateStoryRequest{
						Title:    ctx.String("title"),
						AsA:      ctx.String("as-a"),
						IWant:    ctx.String("i-want"),
						SoThat:   ctx.String("so-that"),
						Priority: planapi.Priority(strings.ToUpper(ctx.String("priority"))),
					})
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "update a story",
				ArgsUsage: "<story-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "as-a"},
					&cli.StringFlag{Name: "i-want"},
					&cli.StringFlag{Name: "so-that"},
					&cli.StringFlag{Name: "priority"},
					&cli.StringFlag{Name: "status"},
					&cli.IntFlag{Name: "order"},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "story-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					req := planapi.UpdateStoryRequest{
						Title:    ctx.String("title"),
						AsA:      ctx.String("as-a"),
						IWant:    ctx.String("i-want"),
						SoThat:   ctx.String("so-that"),
						Priority: planapi.Priority(strings.ToUpper(ctx.String("priority"))),
						Status:   planapi.Status(strings.ToUpper(ctx.String("status"))),
					}
					if ctx.IsSet("order") {
						order := ctx.Int("order")
						req.Order = &order
					}
					r.hierarchy.UpdateStory(ctx.Context, id, req)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a story",
				ArgsUsage: "<story-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "story-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					r.hierarchy.DeleteStory(ctx.Context, id)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
		},
	}
}

func tasksCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "tasks",
		Usage: "manage tasks inside a story",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "create a task under a story",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "story", Required: true},
					&cli.StringFlag{Name: "title", Required: true},
					&cli.StringFlag{Name: "description"},
					&cli.Float64Flag{Name: "hours"},
				},
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					r.hierarchy.CreateTask(ctx.Context, planapi.ID(ctx.String("story")), planapi.CreateTaskRequest{
						Title:          ctx.String("title"),
						Description:    ctx.String("description"),
						EstimatedHours: ctx.Float64("hours"),
					})
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "update",
				Usage:     "update a task",
				ArgsUsage: "<task-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "status"},
					&cli.Float64Flag{Name: "hours"},
					&cli.IntFlag{Name: "order"},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "task-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					req := planapi.UpdateTaskRequest{
						Title:       ctx.String("title"),
						Description: ctx.String("description"),
						Status:      planapi.Status(strings.ToUpper(ctx.String("status"))),
					}
					if ctx.IsSet("hours") {
						hours := ctx.Float64("hours")
						req.EstimatedHours = &hours
					}
					if ctx.IsSet("order") {
						order := ctx.Int("order")
						req.Order = &order
					}
					r.hierarchy.UpdateTask(ctx.Context, id, req)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
			{
				Name:      "delete",
				Usage:     "delete a task",
				ArgsUsage: "<task-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "project", Required: true},
				},
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "task-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					if err := selectProject(ctx.Context, r, planapi.ID(ctx.String("project"))); err != nil {
						return err
					}
					r.hierarchy.DeleteTask(ctx.Context, id)
					if err := storeErr(r.hierarchy.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
		},
	}
}

func chatCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "talk to the planning assistant",
		Subcommands: []*cli.Command{
			{
				Name:      "send",
				Usage:     "send a message and print the assistant's reply",
				ArgsUsage: "<project-id> <message...>",
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					text := strings.TrimSpace(strings.Join(ctx.Args().Slice()[1:], " "))
					if text == "" {
						return errors.New("message text is required")
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.recordOpen(id, "")
					r.conversation.LoadConversation(ctx.Context, id)
					if err := storeErr(r.conversation.Err()); err != nil {
						return err
					}
					r.conversation.SendMessage(ctx.Context, id, text)
					if err := storeErr(r.conversation.Err()); err != nil {
						return err
					}
					printMessages(ctx.App.Writer, lastExchange(r.conversation.Messages()))
					return nil
				},
			},
			{
				Name:      "history",
				Usage:     "print the full conversation transcript",
				ArgsUsage: "<project-id>",
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.conversation.LoadConversation(ctx.Context, id)
					if err := storeErr(r.conversation.Err()); err != nil {
						return err
					}
					printMessages(ctx.App.Writer, r.conversation.Messages())
					return nil
				},
			},
			{
				Name:      "extract",
				Usage:     "turn the conversation into a plan and print it",
				ArgsUsage: "<project-id>",
				Action: func(ctx *cli.Context) error {
					id, err := argID(ctx, 0, "project-id")
					if err != nil {
						return err
					}
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					r.conversation.ExtractPlan(ctx.Context, id)
					if err := storeErr(r.conversation.Err()); err != nil {
						return err
					}
					printTree(ctx.App.Writer, r.hierarchy.SelectedProject())
					return nil
				},
			},
		},
	}
}

func recentCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:  "recent",
		Usage: "list recently opened projects",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20},
		},
		Action: func(ctx *cli.Context) error {
			r, err := deps.runtime()
			if err != nil {
				return err
			}
			store, err := r.openHistory()
			if err != nil {
				return err
			}
			entries, err := store.List(ctx.Int("limit"))
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Fprintf(ctx.App.Writer, "%s\t%s\topened %d times, last %s\n",
					e.ProjectID, e.Name, e.OpenCount, e.LastOpened.Format("2006-01-02 15:04"))
			}
			return nil
		},
		Subcommands: []*cli.Command{
			{
				Name:  "clear",
				Usage: "forget all recently opened projects",
				Action: func(ctx *cli.Context) error {
					r, err := deps.runtime()
					if err != nil {
						return err
					}
					store, err := r.openHistory()
					if err != nil {
						return err
					}
					return store.Clear()
				},
			},
		},
	}
}

func watchCommand(deps Deps) *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "follow a project's live events and keep local state fresh",
		ArgsUsage: "<project-id>",
		Action: func(ctx *cli.Context) error {
			id, err := argID(ctx, 0, "project-id")
			if err != nil {
				return err
			}
			r, err := deps.runtime()
			if err != nil {
				return err
			}
			r.hierarchy.LoadProjectDetail(ctx.Context, id)
			if err := storeErr(r.hierarchy.Err()); err != nil {
				return err
			}
			r.conversation.LoadConversation(ctx.Context, id)
			if err := storeErr(r.conversation.Err()); err != nil {
				return err
			}
			unsubscribe := r.hierarchy.Subscribe(func() {
				if detail := r.hierarchy.SelectedProject(); detail != nil {
					r.logger.Info("plan state refreshed", "project_id", detail.ID, "epics", len(detail.Epics))
				}
			})
			defer unsubscribe()

			watcher := planwatch.NewWatcher(r.dialer(), r.hierarchy, r.conversation, r.logger)
			return watcher.Run(ctx.Context, r.cfg.BaseURL, id)
		},
	}
}

func selectProject(ctx context.Context, r *runtime, projectID planapi.ID) error {
	if strings.TrimSpace(string(projectID)) == "" {
		return errors.New("project id is required")
	}
	r.hierarchy.LoadProjectDetail(ctx, projectID)
	return storeErr(r.hierarchy.Err())
}

func argID(ctx *cli.Context, i int, name string) (planapi.ID, error) {
	v := strings.TrimSpace(ctx.Args().Get(i))
	if v == "" {
		return "", fmt.Errorf("%s argument is required", name)
	}
	return planapi.ID(v), nil
}

func storeErr(msg string) error {
	if msg == "" {
		return nil
	}
	return cli.Exit(msg, 1)
}

// lastExchange trims the transcript to the final user/assistant pair for
// compact send output.
func lastExchange(msgs []planapi.Message) []planapi.Message {
	if len(msgs) <= 2 {
		return msgs
	}
	return msgs[len(msgs)-2:]
}
