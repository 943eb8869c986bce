package mongostore

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/query"
)

func lookup(d bson.D, key string) (any, bool) {
	for _, e := range d {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func TestTaskFilterOwnerFirstAndArchived(t *testing.T) {
	f := TaskFilter(query.TaskQuery{UserID: "u1"})
	if len(f) == 0 || f[0].Key != "user" || f[0].Value != "u1" {
		t.Fatalf("owner predicate must come first, got %v", f)
	}
	if v, ok := lookup(f, "isArchived"); !ok || v != false {
		t.Fatalf("expected isArchived=false, got %v", f)
	}

	f = TaskFilter(query.TaskQuery{UserID: "u1", IncludeArchived: true})
	if _, ok := lookup(f, "isArchived"); ok {
		t.Fatalf("includeArchived should drop the archive predicate: %v", f)
	}
}

func TestTaskFilterKeywordIsEscaped(t *testing.T) {
	f := TaskFilter(query.TaskQuery{UserID: "u1", Keyword: "a.b(c"})
	v, ok := lookup(f, "$or")
	if !ok {
		t.Fatalf("expected $or clause: %v", f)
	}
	alts := v.(bson.A)
	if len(alts) != 3 {
		t.Fatalf("expected title/description/tags alternatives, got %d", len(alts))
	}
	re := alts[0].(bson.D)[0].Value.(primitive.Regex)
	if re.Pattern != `a\.b\(c` || re.Options != "i" {
		t.Fatalf("unexpected regex %+v", re)
	}
}

func TestTaskFilterFieldsAndDeadlineRange(t *testing.T) {
	before := time.Date(2024, 6, 30, 23, 59, 59, 0, time.UTC)
	after := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	f := TaskFilter(query.TaskQuery{
		UserID:     "u1",
		Status:     model.StatusPending,
		Priority:   model.PriorityHigh,
		CategoryID: "c1",
		DueBefore:  &before,
		DueAfter:   &after,
	})
	if v, _ := lookup(f, "status"); v != "pending" {
		t.Fatalf("status: %v", v)
	}
	if v, _ := lookup(f, "priority"); v != "high" {
		t.Fatalf("priority: %v", v)
	}
	if v, _ := lookup(f, "category"); v != "c1" {
		t.Fatalf("category: %v", v)
	}
	v, ok := lookup(f, "deadline")
	if !ok {
		t.Fatalf("expected deadline range")
	}
	rng := v.(bson.D)
	if lte, _ := lookup(rng, "$lte"); lte != before {
		t.Fatalf("$lte: %v", lte)
	}
	if gte, _ := lookup(rng, "$gte"); gte != after {
		t.Fatalf("$gte: %v", gte)
	}
}

func TestCategoryFilter(t *testing.T) {
	active := true
	f := CategoryFilter(query.CategoryQuery{UserID: "u1", Keyword: "work", IsActive: &active})
	if f[0].Key != "user" {
		t.Fatalf("owner predicate must come first: %v", f)
	}
	if v, _ := lookup(f, "isActive"); v != true {
		t.Fatalf("isActive: %v", v)
	}
	if _, ok := lookup(f, "isDefault"); ok {
		t.Fatalf("isDefault should be absent: %v", f)
	}
	if _, ok := lookup(f, "$or"); !ok {
		t.Fatalf("keyword should add $or: %v", f)
	}
}

func TestUserFilterEmptyKeyword(t *testing.T) {
	if f := UserFilter(query.UserQuery{}); len(f) != 0 {
		t.Fatalf("expected empty filter, got %v", f)
	}
}

func TestStatsPipelineShape(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	p := CategoryPipeline("u1", "c1", now)
	if len(p) != 2 {
		t.Fatalf("expected $match and $group stages, got %d", len(p))
	}
	match := p[0][0].Value.(bson.D)
	if v, _ := lookup(match, "category"); v != "c1" {
		t.Fatalf("match category: %v", match)
	}
	if v, _ := lookup(match, "isArchived"); v != false {
		t.Fatalf("match must exclude archived: %v", match)
	}
	group := p[1][0].Value.(bson.D)
	for _, key := range []string{
		"_id", "totalTasks", "completedTasks", "inProgressTasks", "pendingTasks", "overdueTasks",
		"totalEstimatedHours", "totalActualHours", "progressionSum", "completionDaysSum", "completionSamples",
	} {
		if _, ok := lookup(group, key); !ok {
			t.Fatalf("group is missing %s", key)
		}
	}

	user := UserPipeline("u1", now)[0][0].Value.(bson.D)
	if _, ok := lookup(user, "category"); ok {
		t.Fatalf("user pipeline must not filter by category: %v", user)
	}
}
