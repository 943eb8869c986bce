package handler

import (
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
)

// TaskView is a task with its read-time derived fields.
type TaskView struct {
	*model.Task
	IsOverdue             bool `json:"isOverdue"`
	DaysUntilDeadline     *int `json:"daysUntilDeadline"`
	SubtaskCompletionRate int  `json:"subtaskCompletionRate"`
}

func taskView(t *model.Task, now time.Time) TaskView {
	t.EnsureCollections()
	return TaskView{
		Task:                  t,
		IsOverdue:             t.IsOverdue(now),
		DaysUntilDeadline:     t.DaysUntilDeadline(now),
		SubtaskCompletionRate: t.SubtaskCompletionRate(),
	}
}

func taskViews(ts []*model.Task, now time.Time) []TaskView {
	out := make([]TaskView, 0, len(ts))
	for _, t := range ts {
		out = append(out, taskView(t, now))
	}
	return out
}

// categorySummary is the short category form embedded in stats and task
// listings.
type categorySummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func summarize(c *model.Category) categorySummary {
	return categorySummary{ID: c.ID, Name: c.Name, Color: c.Color, Icon: c.Icon}
}

func categoryList(cs []*model.Category) []*model.Category {
	if cs == nil {
		return []*model.Category{}
	}
	return cs
}

func userList(us []*model.User) []*model.User {
	if us == nil {
		return []*model.User{}
	}
	return us
}
