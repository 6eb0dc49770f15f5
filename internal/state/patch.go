package state

import "planhub/cli/internal/planapi"

// Tree patch helpers. Each locates a node by id at its depth and rebuilds the
// spine above it copy-on-write, sharing untouched siblings and subtrees. On a
// miss the original pointer comes back unchanged so observers can skip
// re-rendering.

func patchEpic(d *planapi.ProjectDetail, updated planapi.Epic) (*planapi.ProjectDetail, bool) {
	for i := range d.Epics {
		if d.Epics[i].ID != updated.ID {
			continue
		}
		merged := updated
		if merged.Stories == nil {
			merged.Stories = d.Epics[i].Stories
		}
		return replaceEpic(d, i, merged), true
	}
	return d, false
}

func patchStory(d *planapi.ProjectDetail, updated planapi.UserStory) (*planapi.ProjectDetail, bool) {
	for i := range d.Epics {
		for j := range d.Epics[i].Stories {
			if d.Epics[i].Stories[j].ID != updated.ID {
				continue
			}
			merged := updated
			if merged.Tasks == nil {
				merged.Tasks = d.Epics[i].Stories[j].Tasks
			}
			epic := d.Epics[i]
			epic.Stories = replaceInSlice(epic.Stories, j, merged)
			return replaceEpic(d, i, epic), true
		}
	}
	return d, false
}

func patchTask(d *planapi.ProjectDetail, updated planapi.Task) (*planapi.ProjectDetail, bool) {
	for i := range d.Epics {
		for j := range d.Epics[i].Stories {
			for k := range d.Epics[i].Stories[j].Tasks {
				if d.Epics[i].Stories[j].Tasks[k].ID != updated.ID {
					continue
				}
				story := d.Epics[i].Stories[j]
				story.Tasks = replaceInSlice(story.Tasks, k, updated)
				epic := d.Epics[i]
				epic.Stories = replaceInSlice(epic.Stories, j, story)
				return replaceEpic(d, i, epic), true
			}
		}
	}
	return d, false
}

func replaceEpic(d *planapi.ProjectDetail, i int, epic planapi.Epic) *planapi.ProjectDetail {
	next := *d
	next.Epics = replaceInSlice(d.Epics, i, epic)
	return &next
}

func replaceInSlice[T any](in []T, i int, v T) []T {
	out := make([]T, len(in))
	copy(out, in)
	out[i] = v
	return out
}
