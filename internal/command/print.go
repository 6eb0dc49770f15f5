package command

import (
	"fmt"
	"io"
	"text/tabwriter"

	"planhub/cli/internal/planapi"
)

func printProjects(w io.Writer, projects []planapi.Project) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEPICS\tUPDATED")
	for _, p := range projects {
		updated := ""
		if !p.UpdatedAt.IsZero() {
			updated = p.UpdatedAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.Name, p.EpicCount, updated)
	}
	_ = tw.Flush()
}

func printTree(w io.Writer, detail *planapi.ProjectDetail) {
	if detail == nil {
		fmt.Fprintln(w, "no project selected")
		return
	}
	fmt.Fprintf(w, "%s (%s)\n", detail.Name, detail.ID)
	if detail.Description != "" {
		fmt.Fprintf(w, "  %s\n", detail.Description)
	}
	for _, epic := range detail.Epics {
		fmt.Fprintf(w, "  epic %s [%s/%s] %s\n", epic.ID, epic.Priority, epic.Status, epic.Title)
		for _, story := range epic.Stories {
			fmt.Fprintf(w, "    story %s [%s/%s] %s\n", story.ID, story.Priority, story.Status, story.Title)
			for _, task := range story.Tasks {
				hours := ""
				if task.EstimatedHours > 0 {
					hours = fmt.Sprintf(" (%gh)", task.EstimatedHours)
				}
				fmt.Fprintf(w, "      task %s [%s] %s%s\n", task.ID, task.Status, task.Title, hours)
			}
		}
	}
}

func printMessages(w io.Writer, msgs []planapi.Message) {
	for _, m := range msgs {
		stamp := ""
		if !m.CreatedAt.IsZero() {
			stamp = m.CreatedAt.Format("15:04:05 ")
		}
		fmt.Fprintf(w, "%s%s: %s\n", stamp, m.Role, m.Content)
	}
}
