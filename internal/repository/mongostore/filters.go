package mongostore

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
)

func keywordRegex(keyword string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(keyword), Options: "i"}
}

// TaskFilter translates q into a find filter.  The owner predicate is the
// first element.
func TaskFilter(q query.TaskQuery) bson.D {
	f := bson.D{{Key: "user", Value: q.UserID}}
	if !q.IncludeArchived {
		f = append(f, bson.E{Key: "isArchived", Value: false})
	}
	if q.Keyword != "" {
		re := keywordRegex(q.Keyword)
		f = append(f, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "title", Value: re}},
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "tags", Value: re}},
		}})
	}
	if q.Status != "" {
		f = append(f, bson.E{Key: "status", Value: string(q.Status)})
	}
	if q.Priority != "" {
		f = append(f, bson.E{Key: "priority", Value: string(q.Priority)})
	}
	if q.CategoryID != "" {
		f = append(f, bson.E{Key: "category", Value: q.CategoryID})
	}
	if q.DueBefore != nil || q.DueAfter != nil {
		rng := bson.D{}
		if q.DueBefore != nil {
			rng = append(rng, bson.E{Key: "$lte", Value: *q.DueBefore})
		}
		if q.DueAfter != nil {
			rng = append(rng, bson.E{Key: "$gte", Value: *q.DueAfter})
		}
		f = append(f, bson.E{Key: "deadline", Value: rng})
	}
	return f
}

// CategoryFilter translates q into a find filter.
func CategoryFilter(q query.CategoryQuery) bson.D {
	f := bson.D{{Key: "user", Value: q.UserID}}
	if q.Keyword != "" {
		re := keywordRegex(q.Keyword)
		f = append(f, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "description", Value: re}},
		}})
	}
	if q.IsActive != nil {
		f = append(f, bson.E{Key: "isActive", Value: *q.IsActive})
	}
	if q.IsDefault != nil {
		f = append(f, bson.E{Key: "isDefault", Value: *q.IsDefault})
	}
	return f
}

// UserFilter matches the keyword over name and email.
func UserFilter(q query.UserQuery) bson.D {
	if q.Keyword == "" {
		return bson.D{}
	}
	re := keywordRegex(q.Keyword)
	return bson.D{{Key: "$or", Value: bson.A{
		bson.D{{Key: "name", Value: re}},
		bson.D{{Key: "email", Value: re}},
	}}}
}

func cond(expr any) bson.D {
	return bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{expr, 1, 0}}}}}
}

func eq(a, b any) bson.D { return bson.D{{Key: "$eq", Value: bson.A{a, b}}} }
func ne(a, b any) bson.D { return bson.D{{Key: "$ne", Value: bson.A{a, b}}} }

const msPerDay = 1000 * 60 * 60 * 24

// statsPipeline groups the matched tasks into the sums of stats.Raw.
func statsPipeline(match bson.D, now time.Time) mongo.Pipeline {
	completed := string(model.StatusCompleted)
	completedWithDates := bson.D{{Key: "$and", Value: bson.A{
		eq("$status", completed),
		ne("$completedAt", nil),
		ne("$startDate", nil),
	}}}
	overdue := bson.D{{Key: "$and", Value: bson.A{
		bson.D{{Key: "$lt", Value: bson.A{"$deadline", now}}},
		ne("$status", completed),
		ne("$deadline", nil),
	}}}
	return mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalTasks", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "completedTasks", Value: cond(eq("$status", completed))},
			{Key: "inProgressTasks", Value: cond(eq("$status", string(model.StatusInProgress)))},
			{Key: "pendingTasks", Value: cond(eq("$status", string(model.StatusPending)))},
			{Key: "overdueTasks", Value: cond(overdue)},
			{Key: "totalEstimatedHours", Value: bson.D{{Key: "$sum", Value: "$estimatedHours"}}},
			{Key: "totalActualHours", Value: bson.D{{Key: "$sum", Value: "$actualHours"}}},
			{Key: "progressionSum", Value: bson.D{{Key: "$sum", Value: "$progression"}}},
			{Key: "completionDaysSum", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				completedWithDates,
				bson.D{{Key: "$divide", Value: bson.A{
					bson.D{{Key: "$subtract", Value: bson.A{"$completedAt", "$startDate"}}},
					msPerDay,
				}}},
				0,
			}}}}}},
			{Key: "completionSamples", Value: cond(completedWithDates)},
		}}},
	}
}

// UserPipeline aggregates the owner's non-archived tasks.
func UserPipeline(userID string, now time.Time) mongo.Pipeline {
	return statsPipeline(bson.D{
		{Key: "user", Value: userID},
		{Key: "isArchived", Value: false},
	}, now)
}

// CategoryPipeline aggregates the owner's non-archived tasks in one category.
func CategoryPipeline(userID, categoryID string, now time.Time) mongo.Pipeline {
	return statsPipeline(bson.D{
		{Key: "user", Value: userID},
		{Key: "category", Value: categoryID},
		{Key: "isArchived", Value: false},
	}, now)
}
