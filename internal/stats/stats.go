// Package stats computes task rollups for users and categories.
//
// Backends produce a Raw set of sums, either through a native aggregation
// pipeline or by feeding tasks through an Accumulator, and the derived
// ratios are computed here so every backend reports identical values.
package stats

import (
	"math"
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
)

// Raw holds the sums a backend aggregates over the tasks in scope.  The
// bson names match the $group stage of the Mongo pipelines.
type Raw struct {
	TotalTasks          int64   `bson:"totalTasks"`
	CompletedTasks      int64   `bson:"completedTasks"`
	InProgressTasks     int64   `bson:"inProgressTasks"`
	PendingTasks        int64   `bson:"pendingTasks"`
	OverdueTasks        int64   `bson:"overdueTasks"`
	TotalEstimatedHours float64 `bson:"totalEstimatedHours"`
	TotalActualHours    float64 `bson:"totalActualHours"`
	ProgressionSum      float64 `bson:"progressionSum"`
	CompletionDaysSum   float64 `bson:"completionDaysSum"`
	CompletionSamples   int64   `bson:"completionSamples"`
}

// Stats is the rollup shared by task, user and category statistics.
type Stats struct {
	TotalTasks          int64   `json:"totalTasks"`
	CompletedTasks      int64   `json:"completedTasks"`
	InProgressTasks     int64   `json:"inProgressTasks"`
	PendingTasks        int64   `json:"pendingTasks"`
	OverdueTasks        int64   `json:"overdueTasks"`
	TotalEstimatedHours float64 `json:"totalEstimatedHours"`
	TotalActualHours    float64 `json:"totalActualHours"`
	AvgProgression      float64 `json:"avgProgression"`
	CompletionRate      int     `json:"completionRate"`
}

// UserStats adds the productivity score to the base rollup.
type UserStats struct {
	Stats
	ProductivityScore int `json:"productivityScore"`
}

// CategoryStats adds the average completion time, in days, of completed
// tasks in the category.
type CategoryStats struct {
	Stats
	AvgCompletionTime float64 `json:"avgCompletionTime"`
}

// Stats derives the base rollup.  A zero Raw yields a zero Stats.
func (r Raw) Stats() Stats {
	s := Stats{
		TotalTasks:          r.TotalTasks,
		CompletedTasks:      r.CompletedTasks,
		InProgressTasks:     r.InProgressTasks,
		PendingTasks:        r.PendingTasks,
		OverdueTasks:        r.OverdueTasks,
		TotalEstimatedHours: r.TotalEstimatedHours,
		TotalActualHours:    r.TotalActualHours,
		CompletionRate:      CompletionRate(r.CompletedTasks, r.TotalTasks),
	}
	if r.TotalTasks > 0 {
		s.AvgProgression = r.ProgressionSum / float64(r.TotalTasks)
	}
	return s
}

// UserStats derives the per-user rollup.
func (r Raw) UserStats() UserStats {
	return UserStats{
		Stats:             r.Stats(),
		ProductivityScore: ProductivityScore(r.TotalActualHours, r.TotalEstimatedHours),
	}
}

// CategoryStats derives the per-category rollup.
func (r Raw) CategoryStats() CategoryStats {
	cs := CategoryStats{Stats: r.Stats()}
	if r.CompletionSamples > 0 {
		cs.AvgCompletionTime = r.CompletionDaysSum / float64(r.CompletionSamples)
	}
	return cs
}

// CompletionRate is round(completed/total*100), or 0 when total is 0.
func CompletionRate(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// ProductivityScore is round(actual/estimated*100), or 0 when nothing was
// estimated.
func ProductivityScore(actual, estimated float64) int {
	if estimated <= 0 {
		return 0
	}
	return int(math.Round(actual / estimated * 100))
}

const day = 24 * time.Hour

// Accumulator reduces a stream of tasks into Raw sums.  It is the
// in-process equivalent of the Mongo $group stage and is used by backends
// without pipeline aggregation.  Callers feed only tasks in scope.
type Accumulator struct {
	now time.Time
	raw Raw
}

// NewAccumulator returns an Accumulator that judges overdue tasks against now.
func NewAccumulator(now time.Time) *Accumulator {
	return &Accumulator{now: now}
}

// Add folds t into the running sums.
func (a *Accumulator) Add(t *model.Task) {
	r := &a.raw
	r.TotalTasks++
	switch t.Status {
	case model.StatusCompleted:
		r.CompletedTasks++
		if t.CompletedAt != nil && t.StartDate != nil {
			r.CompletionDaysSum += float64(t.CompletedAt.Sub(*t.StartDate)) / float64(day)
			r.CompletionSamples++
		}
	case model.StatusInProgress:
		r.InProgressTasks++
	case model.StatusPending:
		r.PendingTasks++
	}
	if t.IsOverdue(a.now) {
		r.OverdueTasks++
	}
	r.TotalEstimatedHours += t.EstimatedHours
	r.TotalActualHours += t.ActualHours
	r.ProgressionSum += float64(t.Progression)
}

// Raw returns the sums accumulated so far.
func (a *Accumulator) Raw() Raw { return a.raw }
