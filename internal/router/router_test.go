package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/task-management-api/internal/config"
	"github.com/iliyamo/task-management-api/internal/database"
	"github.com/iliyamo/task-management-api/internal/handler"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/repository/sqlstore"
	"github.com/iliyamo/task-management-api/internal/service"
)

type testAPI struct {
	t     *testing.T
	e     *echo.Echo
	store *repository.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	logger, _ := test.NewNullLogger()
	if err := database.Migrate(db, "sqlite", logger); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store := sqlstore.New(db)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	cfg := config.Config{
		Env:            "test",
		JWTSecret:      "test-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4,
	}
	d := handler.Deps{
		Cfg:     cfg,
		Store:   store,
		Events:  service.NopPublisher{},
		Counter: service.NewCategoryCounter(store.Categories, logger),
		Log:     logger,
	}
	return &testAPI{t: t, e: New(d, Options{}), store: store}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		b, err := sonic.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal body: %v", err)
		}
		buf.Write(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

// call performs the request, checks the status and decodes the body into out.
func (a *testAPI) call(method, path, token string, body any, want int, out any) {
	a.t.Helper()
	rec := a.do(method, path, token, body)
	if rec.Code != want {
		a.t.Fatalf("%s %s: status %d, want %d, body %s", method, path, rec.Code, want, rec.Body.String())
	}
	if out != nil {
		if err := sonic.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
}

type authBody struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
	Access struct {
		Token string `json:"token"`
	} `json:"access"`
	Refresh struct {
		Token string `json:"token"`
	} `json:"refresh"`
}

type message struct {
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors"`
}

type taskBody struct {
	ID                    string   `json:"id"`
	Title                 string   `json:"title"`
	Status                string   `json:"status"`
	Priority              string   `json:"priority"`
	Category              string   `json:"category"`
	Progression           int      `json:"progression"`
	CompletedAt           *string  `json:"completedAt"`
	EstimatedHours        float64  `json:"estimatedHours"`
	IsArchived            bool     `json:"isArchived"`
	IsOverdue             bool     `json:"isOverdue"`
	DaysUntilDeadline     *int     `json:"daysUntilDeadline"`
	SubtaskCompletionRate int      `json:"subtaskCompletionRate"`
	Tags                  []string `json:"tags"`
	Subtasks              []struct {
		ID          string `json:"id"`
		IsCompleted bool   `json:"isCompleted"`
	} `json:"subtasks"`
}

type taskList struct {
	Tasks   []taskBody `json:"tasks"`
	Page    int        `json:"page"`
	Pages   int        `json:"pages"`
	Total   int64      `json:"total"`
	HasMore bool       `json:"hasMore"`
}

type categoryBody struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
	IsDefault bool   `json:"isDefault"`
	IsActive  bool   `json:"isActive"`
	TaskCount int64  `json:"taskCount"`
}

func (a *testAPI) register(name, email string) authBody {
	a.t.Helper()
	var out authBody
	a.call(http.MethodPost, "/api/users", "", map[string]any{
		"name": name, "email": email, "password": "secret123",
	}, http.StatusCreated, &out)
	return out
}

func (a *testAPI) createTask(token string, body map[string]any) taskBody {
	a.t.Helper()
	var out taskBody
	a.call(http.MethodPost, "/api/tasks", token, body, http.StatusCreated, &out)
	return out
}

func (a *testAPI) createCategory(token, name string) categoryBody {
	a.t.Helper()
	var out categoryBody
	a.call(http.MethodPost, "/api/categories", token, map[string]any{"name": name}, http.StatusCreated, &out)
	return out
}

// sameSecond compares two timestamps at the precision the store keeps.
func sameSecond(t *testing.T, a, b string) bool {
	t.Helper()
	ta, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		t.Fatalf("parse %q: %v", a, err)
	}
	tb, err := time.Parse(time.RFC3339Nano, b)
	if err != nil {
		t.Fatalf("parse %q: %v", b, err)
	}
	return ta.Truncate(time.Second).Equal(tb.Truncate(time.Second))
}

func future() string { return time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339) }

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t)
	alice := a.register("Alice", "  Alice@Example.com ")
	if alice.Email != "alice@example.com" || alice.Access.Token == "" || alice.Refresh.Token == "" {
		t.Fatalf("unexpected register response %+v", alice)
	}
	if alice.Avatar == "" {
		t.Fatalf("avatar should be generated")
	}

	var msg message
	a.call(http.MethodPost, "/api/users", "", map[string]any{
		"name": "Again", "email": "alice@example.com", "password": "secret123",
	}, http.StatusBadRequest, &msg)
	if msg.Message != "User already exists" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	a.call(http.MethodPost, "/api/users/auth", "", map[string]any{
		"email": "alice@example.com", "password": "wrong-password",
	}, http.StatusUnauthorized, &msg)
	if msg.Message != "Invalid email or password" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	var login authBody
	a.call(http.MethodPost, "/api/users/auth", "", map[string]any{
		"email": "ALICE@example.com", "password": "secret123",
	}, http.StatusOK, &login)

	var profile struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	a.call(http.MethodGet, "/api/users/profile", login.Access.Token, nil, http.StatusOK, &profile)
	if profile.ID != alice.ID || profile.Name != "Alice" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if rec := a.do(http.MethodGet, "/api/users/profile", "", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("profile without token should be 401, got %d", rec.Code)
	}

	var rotated authBody
	a.call(http.MethodPost, "/api/users/refresh", "", map[string]any{"refresh_token": login.Refresh.Token}, http.StatusOK, &rotated)
	if rotated.Access.Token == "" || rotated.Refresh.Token == login.Refresh.Token {
		t.Fatalf("refresh should issue a new pair")
	}
	a.call(http.MethodPost, "/api/users/refresh", "", map[string]any{"refresh_token": login.Refresh.Token}, http.StatusUnauthorized, nil)

	rec := a.do(http.MethodPost, "/api/users/logout", "", map[string]any{"refresh_token": rotated.Refresh.Token})
	if rec.Code != http.StatusOK {
		t.Fatalf("logout failed: %d", rec.Code)
	}
	cleared := false
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "jwt" && ck.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatalf("logout should clear the jwt cookie")
	}
	a.call(http.MethodPost, "/api/users/refresh", "", map[string]any{"refresh_token": rotated.Refresh.Token}, http.StatusUnauthorized, nil)
}

func TestRegisterValidation(t *testing.T) {
	a := newTestAPI(t)
	var msg message
	a.call(http.MethodPost, "/api/users", "", map[string]any{
		"name": "Bob", "email": "not-an-email", "password": "123",
	}, http.StatusBadRequest, &msg)
	if msg.Errors["email"] == "" || msg.Errors["password"] == "" {
		t.Fatalf("expected email and password errors, got %v", msg.Errors)
	}
}

func TestTaskStatsScenario(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Stats", "stats@example.com").Access.Token

	a.createTask(tok, map[string]any{"title": "Done one", "status": "completed"})
	a.createTask(tok, map[string]any{"title": "Done two", "status": "completed"})
	a.createTask(tok, map[string]any{"title": "Working", "status": "in-progress", "progression": 40})
	a.createTask(tok, map[string]any{"title": "Later"})

	var out struct {
		Stats struct {
			TotalTasks      int64   `json:"totalTasks"`
			CompletedTasks  int64   `json:"completedTasks"`
			InProgressTasks int64   `json:"inProgressTasks"`
			PendingTasks    int64   `json:"pendingTasks"`
			OverdueTasks    int64   `json:"overdueTasks"`
			AvgProgression  float64 `json:"avgProgression"`
			CompletionRate  int     `json:"completionRate"`
		} `json:"stats"`
		GeneratedAt string `json:"generatedAt"`
	}
	a.call(http.MethodGet, "/api/tasks/stats", tok, nil, http.StatusOK, &out)
	s := out.Stats
	if s.TotalTasks != 4 || s.CompletedTasks != 2 || s.InProgressTasks != 1 || s.PendingTasks != 1 {
		t.Fatalf("unexpected counts %+v", s)
	}
	if s.CompletionRate != 50 || s.AvgProgression != 60 || s.OverdueTasks != 0 {
		t.Fatalf("unexpected derived values %+v", s)
	}
	if out.GeneratedAt == "" {
		t.Fatalf("generatedAt missing")
	}

	var empty struct {
		Stats struct {
			TotalTasks     int64 `json:"totalTasks"`
			CompletionRate int   `json:"completionRate"`
		} `json:"stats"`
	}
	other := a.register("Empty", "empty@example.com").Access.Token
	a.call(http.MethodGet, "/api/tasks/stats", other, nil, http.StatusOK, &empty)
	if empty.Stats.TotalTasks != 0 || empty.Stats.CompletionRate != 0 {
		t.Fatalf("a user without tasks should get zero stats, got %+v", empty.Stats)
	}
}

func TestUserStatsProductivityScore(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Worker", "worker@example.com").Access.Token
	a.createTask(tok, map[string]any{"title": "A", "estimatedHours": 2, "actualHours": 3})
	a.createTask(tok, map[string]any{"title": "B", "estimatedHours": 4, "actualHours": 6})

	var out struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Stats struct {
			TotalEstimatedHours float64 `json:"totalEstimatedHours"`
			TotalActualHours    float64 `json:"totalActualHours"`
			ProductivityScore   int     `json:"productivityScore"`
		} `json:"stats"`
	}
	a.call(http.MethodGet, "/api/users/stats", tok, nil, http.StatusOK, &out)
	if out.User.Email != "worker@example.com" {
		t.Fatalf("unexpected user %+v", out.User)
	}
	if out.Stats.TotalEstimatedHours != 6 || out.Stats.TotalActualHours != 9 || out.Stats.ProductivityScore != 150 {
		t.Fatalf("unexpected stats %+v", out.Stats)
	}
}

func TestTaskLifecycleThroughAPI(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Life", "life@example.com").Access.Token
	task := a.createTask(tok, map[string]any{"title": "Ship", "deadline": future(), "tags": []string{" Go ", "API", ""}})
	if task.Status != "pending" || task.Priority != "medium" {
		t.Fatalf("unexpected defaults %+v", task)
	}
	if task.DaysUntilDeadline == nil || *task.DaysUntilDeadline != 3 || task.IsOverdue {
		t.Fatalf("unexpected deadline fields %+v", task)
	}
	if len(task.Tags) != 2 || task.Tags[0] != "go" || task.Tags[1] != "api" {
		t.Fatalf("tags should be normalized, got %v", task.Tags)
	}

	var done taskBody
	a.call(http.MethodPut, "/api/tasks/"+task.ID, tok, map[string]any{"status": "completed"}, http.StatusOK, &done)
	if done.Progression != 100 || done.CompletedAt == nil {
		t.Fatalf("completing should stamp completedAt and force progression, got %+v", done)
	}

	var again taskBody
	a.call(http.MethodPut, "/api/tasks/"+task.ID, tok, map[string]any{"status": "completed", "title": ""}, http.StatusOK, &again)
	if again.CompletedAt == nil || !sameSecond(t, *again.CompletedAt, *done.CompletedAt) || again.Title != "Ship" {
		t.Fatalf("repeating the status must be a no-op, got %+v", again)
	}

	var reopened taskBody
	a.call(http.MethodPut, "/api/tasks/"+task.ID, tok, map[string]any{"status": "in-progress"}, http.StatusOK, &reopened)
	if reopened.Progression != 50 || reopened.CompletedAt != nil {
		t.Fatalf("reopening should reset progression to 50, got %+v", reopened)
	}

	var comment struct {
		Message string `json:"message"`
		Comment struct {
			Text string `json:"text"`
			User string `json:"user"`
		} `json:"comment"`
	}
	a.call(http.MethodPost, "/api/tasks/"+task.ID+"/comments", tok, map[string]any{"text": " looks good "}, http.StatusCreated, &comment)
	if comment.Message != "Comment added successfully" || comment.Comment.Text != "looks good" {
		t.Fatalf("unexpected comment response %+v", comment)
	}
	var msg message
	a.call(http.MethodPost, "/api/tasks/"+task.ID+"/comments", tok, map[string]any{"text": "  "}, http.StatusBadRequest, &msg)
	if msg.Message != "Comment text is required" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	var withSub struct {
		Task taskBody `json:"task"`
	}
	a.call(http.MethodPost, "/api/tasks/"+task.ID+"/subtasks", tok, map[string]any{"title": "Write docs"}, http.StatusCreated, &withSub)
	a.call(http.MethodPost, "/api/tasks/"+task.ID+"/subtasks", tok, map[string]any{"title": "Tag release"}, http.StatusCreated, &withSub)
	if len(withSub.Task.Subtasks) != 2 || withSub.Task.SubtaskCompletionRate != 0 {
		t.Fatalf("unexpected subtasks %+v", withSub.Task)
	}
	subID := withSub.Task.Subtasks[0].ID
	a.call(http.MethodPut, "/api/tasks/"+task.ID+"/subtasks/"+subID+"/toggle", tok, nil, http.StatusOK, &withSub)
	if !withSub.Task.Subtasks[0].IsCompleted || withSub.Task.SubtaskCompletionRate != 50 {
		t.Fatalf("toggle should complete the subtask, got %+v", withSub.Task)
	}

	var deleted struct {
		Message     string `json:"message"`
		DeletedTask struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"deletedTask"`
	}
	a.call(http.MethodDelete, "/api/tasks/"+task.ID, tok, nil, http.StatusOK, &deleted)
	if deleted.Message != "Task removed successfully" || deleted.DeletedTask.ID != task.ID {
		t.Fatalf("unexpected delete response %+v", deleted)
	}
	a.call(http.MethodGet, "/api/tasks/"+task.ID, tok, nil, http.StatusNotFound, &msg)
	if msg.Message != "Task not found" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
}

func TestCreateInProgressKeepsProgression(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Prog", "prog@example.com").Access.Token
	task := a.createTask(tok, map[string]any{"title": "Almost there", "status": "in-progress", "progression": 100})
	if task.Status != "in-progress" || task.Progression != 100 || task.CompletedAt != nil {
		t.Fatalf("creating an in-progress task must keep its progression, got %+v", task)
	}

	var back taskBody
	a.call(http.MethodPut, "/api/tasks/"+task.ID, tok, map[string]any{"status": "pending"}, http.StatusOK, &back)
	if back.Progression != 100 {
		t.Fatalf("in-progress -> pending must keep progression, got %d", back.Progression)
	}
}

func TestTaskValidation(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Val", "val@example.com").Access.Token

	var msg message
	a.call(http.MethodPost, "/api/tasks", tok, map[string]any{"description": "no title"}, http.StatusBadRequest, &msg)
	if msg.Message != "Task title is required" || msg.Errors["title"] == "" {
		t.Fatalf("unexpected response %+v", msg)
	}
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	a.call(http.MethodPost, "/api/tasks", tok, map[string]any{"title": "Late", "deadline": past}, http.StatusBadRequest, &msg)
	if msg.Errors["deadline"] == "" {
		t.Fatalf("a past deadline should be rejected, got %+v", msg)
	}
	a.call(http.MethodPost, "/api/tasks", tok, map[string]any{"title": "Bad", "progression": 150}, http.StatusBadRequest, &msg)
	if msg.Errors["progression"] == "" {
		t.Fatalf("progression above 100 should be rejected, got %+v", msg)
	}
	a.call(http.MethodGet, "/api/tasks?status=done", tok, nil, http.StatusBadRequest, &msg)
	a.call(http.MethodGet, "/api/tasks/not-a-uuid", tok, nil, http.StatusNotFound, &msg)
	if msg.Message != "Invalid id: not-a-uuid" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	a := newTestAPI(t)
	alice := a.register("Alice", "alice@example.com")
	bob := a.register("Bob", "bob@example.com")

	task := a.createTask(alice.Access.Token, map[string]any{"title": "Private"})
	a.createTask(bob.Access.Token, map[string]any{"title": "Bob's"})

	a.call(http.MethodGet, "/api/tasks/"+task.ID, bob.Access.Token, nil, http.StatusNotFound, nil)
	a.call(http.MethodPut, "/api/tasks/"+task.ID, bob.Access.Token, map[string]any{"title": "Mine"}, http.StatusNotFound, nil)
	a.call(http.MethodDelete, "/api/tasks/"+task.ID, bob.Access.Token, nil, http.StatusNotFound, nil)

	var list taskList
	a.call(http.MethodGet, "/api/tasks?user="+alice.ID, bob.Access.Token, nil, http.StatusOK, &list)
	if list.Total != 1 || list.Tasks[0].Title != "Bob's" {
		t.Fatalf("bob must only see his own task, got %+v", list)
	}

	cat := a.createCategory(alice.Access.Token, "Work")
	var msg message
	a.call(http.MethodPost, "/api/tasks", bob.Access.Token, map[string]any{"title": "X", "category": cat.ID}, http.StatusBadRequest, &msg)
	if msg.Message != "Category not found" {
		t.Fatalf("a foreign category must be rejected, got %q", msg.Message)
	}
	a.call(http.MethodGet, "/api/categories/"+cat.ID, bob.Access.Token, nil, http.StatusNotFound, nil)
}

func TestListPagingAndArchiveFilter(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Pager", "pager@example.com").Access.Token
	cat := a.createCategory(tok, "Home")

	var ids []string
	for _, title := range []string{"one", "two", "three", "four", "five"} {
		ids = append(ids, a.createTask(tok, map[string]any{"title": title, "category": cat.ID}).ID)
	}

	var page taskList
	a.call(http.MethodGet, "/api/tasks?pageNumber=2&pageSize=2", tok, nil, http.StatusOK, &page)
	if page.Page != 2 || page.Pages != 3 || page.Total != 5 || !page.HasMore || len(page.Tasks) != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	a.call(http.MethodGet, "/api/tasks?pageNumber=abc&pageSize=-1", tok, nil, http.StatusOK, &page)
	if page.Page != 1 || len(page.Tasks) != 5 || page.HasMore {
		t.Fatalf("bad paging values should fall back to defaults, got %+v", page)
	}

	var archived struct {
		Message string `json:"message"`
		Task    struct {
			IsArchived bool `json:"isArchived"`
		} `json:"task"`
	}
	a.call(http.MethodPut, "/api/tasks/"+ids[0]+"/archive", tok, nil, http.StatusOK, &archived)
	if archived.Message != "Task archived successfully" || !archived.Task.IsArchived {
		t.Fatalf("unexpected archive response %+v", archived)
	}

	a.call(http.MethodGet, "/api/tasks", tok, nil, http.StatusOK, &page)
	if page.Total != 4 {
		t.Fatalf("archived tasks should be hidden by default, total=%d", page.Total)
	}
	a.call(http.MethodGet, "/api/tasks?includeArchived=true", tok, nil, http.StatusOK, &page)
	if page.Total != 5 {
		t.Fatalf("includeArchived should show every task, total=%d", page.Total)
	}

	var got categoryBody
	a.call(http.MethodGet, "/api/categories/"+cat.ID, tok, nil, http.StatusOK, &got)
	if got.TaskCount != 4 {
		t.Fatalf("archiving should drop the category count to 4, got %d", got.TaskCount)
	}

	var catTasks struct {
		Category categoryBody `json:"category"`
		Tasks    []taskBody   `json:"tasks"`
		Total    int64        `json:"total"`
	}
	a.call(http.MethodGet, "/api/categories/"+cat.ID+"/tasks?includeArchived=true", tok, nil, http.StatusOK, &catTasks)
	if catTasks.Category.Name != "Home" || catTasks.Total != 5 {
		t.Fatalf("unexpected category tasks %+v", catTasks)
	}

	var kw taskList
	a.call(http.MethodGet, "/api/tasks?keyword=THR", tok, nil, http.StatusOK, &kw)
	if kw.Total != 1 || kw.Tasks[0].Title != "three" {
		t.Fatalf("keyword search should be case-insensitive, got %+v", kw)
	}
}

func TestCategoryDeleteDetachesTasks(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Cat", "cat@example.com").Access.Token
	cat := a.createCategory(tok, "Errands")

	var ids []string
	for _, title := range []string{"milk", "bread", "eggs"} {
		ids = append(ids, a.createTask(tok, map[string]any{"title": title, "category": cat.ID}).ID)
	}

	var count struct {
		Category struct {
			TaskCount int64 `json:"taskCount"`
		} `json:"category"`
	}
	a.call(http.MethodPut, "/api/categories/"+cat.ID+"/update-count", tok, nil, http.StatusOK, &count)
	if count.Category.TaskCount != 3 {
		t.Fatalf("expected 3 tasks in category, got %d", count.Category.TaskCount)
	}

	var deleted struct {
		Message         string `json:"message"`
		DeletedCategory struct {
			ID            string `json:"id"`
			TasksAffected int64  `json:"tasksAffected"`
		} `json:"deletedCategory"`
	}
	a.call(http.MethodDelete, "/api/categories/"+cat.ID, tok, nil, http.StatusOK, &deleted)
	if deleted.Message != "Category removed successfully" || deleted.DeletedCategory.TasksAffected != 3 {
		t.Fatalf("unexpected delete response %+v", deleted)
	}

	for _, id := range ids {
		var task taskBody
		a.call(http.MethodGet, "/api/tasks/"+id, tok, nil, http.StatusOK, &task)
		if task.Category != "" {
			t.Fatalf("task %s should be detached, still in %q", id, task.Category)
		}
	}
	a.call(http.MethodGet, "/api/categories/"+cat.ID, tok, nil, http.StatusNotFound, nil)
}

func TestDefaultCategories(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Defaults", "defaults@example.com").Access.Token

	var created struct {
		Categories []categoryBody `json:"categories"`
		Total      int            `json:"total"`
	}
	a.call(http.MethodPost, "/api/categories/create-defaults", tok, nil, http.StatusCreated, &created)
	if created.Total != 5 || created.Categories[0].Name != "Personal" || !created.Categories[0].IsDefault {
		t.Fatalf("unexpected defaults %+v", created)
	}

	var msg message
	a.call(http.MethodPost, "/api/categories/create-defaults", tok, nil, http.StatusBadRequest, &msg)
	if msg.Message != "Default categories already exist for this user" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	a.call(http.MethodDelete, "/api/categories/"+created.Categories[0].ID, tok, nil, http.StatusBadRequest, &msg)
	if msg.Message != "Cannot delete default category" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	a.call(http.MethodPost, "/api/categories", tok, map[string]any{"name": "work"}, http.StatusBadRequest, &msg)
	if msg.Message != "Category with this name already exists" {
		t.Fatalf("names should be unique regardless of case, got %q", msg.Message)
	}

	var list struct {
		Categories []categoryBody `json:"categories"`
		Total      int64          `json:"total"`
	}
	a.call(http.MethodGet, "/api/categories?keyword=FITNESS", tok, nil, http.StatusOK, &list)
	if list.Total != 1 || list.Categories[0].Name != "Health" {
		t.Fatalf("unexpected keyword result %+v", list)
	}
	a.call(http.MethodGet, "/api/categories", tok, nil, http.StatusOK, &list)
	for i, want := range []string{"Personal", "Work", "Shopping", "Health", "Learning"} {
		if list.Categories[i].Name != want {
			t.Fatalf("categories should follow sortOrder, got %s at %d", list.Categories[i].Name, i)
		}
	}

	var toggled struct {
		Category struct {
			IsActive bool `json:"isActive"`
		} `json:"category"`
	}
	a.call(http.MethodPut, "/api/categories/"+created.Categories[1].ID+"/toggle-active", tok, nil, http.StatusOK, &toggled)
	if toggled.Category.IsActive {
		t.Fatalf("toggle should deactivate the category")
	}
	a.call(http.MethodGet, "/api/categories?isActive=false", tok, nil, http.StatusOK, &list)
	if list.Total != 1 || list.Categories[0].Name != "Work" {
		t.Fatalf("unexpected inactive list %+v", list)
	}
}

func TestCategoryStatsAndDefaults(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("CatStats", "catstats@example.com").Access.Token

	var cat categoryBody
	a.call(http.MethodPost, "/api/categories", tok, map[string]any{
		"name":     "Deep Work",
		"color":    "#abc",
		"settings": map[string]any{"defaultPriority": "high", "defaultEstimatedHours": 3},
	}, http.StatusCreated, &cat)
	if cat.Color != "#abc" || cat.Icon != "folder" || !cat.IsActive {
		t.Fatalf("unexpected category %+v", cat)
	}

	task := a.createTask(tok, map[string]any{"title": "Focus", "category": cat.ID})
	if task.Priority != "high" || task.EstimatedHours != 3 {
		t.Fatalf("category settings should seed the task, got %+v", task)
	}
	a.call(http.MethodPut, "/api/tasks/"+task.ID, tok, map[string]any{"status": "completed"}, http.StatusOK, nil)

	var out struct {
		Category struct {
			Name string `json:"name"`
		} `json:"category"`
		Stats struct {
			TotalTasks        int64   `json:"totalTasks"`
			CompletionRate    int     `json:"completionRate"`
			AvgCompletionTime float64 `json:"avgCompletionTime"`
		} `json:"stats"`
	}
	a.call(http.MethodGet, "/api/categories/"+cat.ID+"/stats", tok, nil, http.StatusOK, &out)
	if out.Category.Name != "Deep Work" || out.Stats.TotalTasks != 1 || out.Stats.CompletionRate != 100 {
		t.Fatalf("unexpected category stats %+v", out)
	}
	if out.Stats.AvgCompletionTime < 0 {
		t.Fatalf("completion time cannot be negative: %v", out.Stats.AvgCompletionTime)
	}

	var msg message
	a.call(http.MethodPost, "/api/categories", tok, map[string]any{"name": "Bad", "color": "blue"}, http.StatusBadRequest, &msg)
	if msg.Errors["color"] == "" {
		t.Fatalf("an invalid color should be rejected, got %+v", msg)
	}
}

func TestAdminUserManagement(t *testing.T) {
	a := newTestAPI(t)
	admin := a.register("Admin", "admin@example.com")
	user := a.register("User", "user@example.com")

	a.call(http.MethodGet, "/api/users", user.Access.Token, nil, http.StatusForbidden, nil)

	ctx := context.Background()
	u, err := a.store.Users.GetByID(ctx, admin.ID)
	if err != nil {
		t.Fatalf("load admin: %v", err)
	}
	u.IsAdmin = true
	if err := a.store.Users.Update(ctx, u); err != nil {
		t.Fatalf("promote admin: %v", err)
	}

	var list struct {
		Users []struct {
			Email string `json:"email"`
		} `json:"users"`
		Total int64 `json:"total"`
	}
	a.call(http.MethodGet, "/api/users?keyword=USER@", admin.Access.Token, nil, http.StatusOK, &list)
	if list.Total != 1 || list.Users[0].Email != "user@example.com" {
		t.Fatalf("unexpected user list %+v", list)
	}

	var msg message
	a.call(http.MethodDelete, "/api/users/"+admin.ID, admin.Access.Token, nil, http.StatusBadRequest, &msg)
	if msg.Message != "Cannot delete admin user" {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	var deactivated struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}
	a.call(http.MethodDelete, "/api/users/"+user.ID, admin.Access.Token, nil, http.StatusOK, &deactivated)
	if deactivated.Message != "User account deactivated" || deactivated.UserID != user.ID {
		t.Fatalf("unexpected response %+v", deactivated)
	}
	a.call(http.MethodPost, "/api/users/auth", "", map[string]any{
		"email": "user@example.com", "password": "secret123",
	}, http.StatusUnauthorized, &msg)
	if msg.Message != "Account has been deactivated" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
	a.call(http.MethodGet, "/api/tasks", user.Access.Token, nil, http.StatusUnauthorized, nil)

	a.call(http.MethodPut, "/api/users/"+user.ID+"/activate", admin.Access.Token, nil, http.StatusOK, &msg)
	if msg.Message != "User account reactivated" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
	a.call(http.MethodGet, "/api/tasks", user.Access.Token, nil, http.StatusOK, nil)
}

func TestProfileAndPreferences(t *testing.T) {
	a := newTestAPI(t)
	tok := a.register("Pref", "pref@example.com").Access.Token

	var prefs struct {
		Message     string `json:"message"`
		Preferences struct {
			Theme         string `json:"theme"`
			DateFormat    string `json:"dateFormat"`
			Notifications struct {
				Email       bool `json:"email"`
				TaskUpdates bool `json:"taskUpdates"`
			} `json:"notifications"`
		} `json:"preferences"`
	}
	a.call(http.MethodPut, "/api/users/preferences", tok, map[string]any{
		"theme":         "dark",
		"notifications": map[string]any{"email": false},
	}, http.StatusOK, &prefs)
	p := prefs.Preferences
	if p.Theme != "dark" || p.DateFormat != "DD/MM/YYYY" || p.Notifications.Email || !p.Notifications.TaskUpdates {
		t.Fatalf("preferences should merge, got %+v", p)
	}

	var msg message
	a.call(http.MethodPut, "/api/users/preferences", tok, map[string]any{"theme": "neon"}, http.StatusBadRequest, &msg)

	var before, after struct {
		Name   string `json:"name"`
		Avatar string `json:"avatar"`
	}
	a.call(http.MethodGet, "/api/users/profile", tok, nil, http.StatusOK, &before)
	a.call(http.MethodPut, "/api/users/profile", tok, map[string]any{"name": "Renamed"}, http.StatusOK, &after)
	if after.Name != "Renamed" || after.Avatar == before.Avatar {
		t.Fatalf("renaming should regenerate the avatar, got %+v", after)
	}

	var variations struct {
		Name       string `json:"name"`
		TotalCount int    `json:"totalCount"`
	}
	a.call(http.MethodGet, "/api/users/avatar-variations", tok, nil, http.StatusOK, &variations)
	if variations.Name != "Renamed" || variations.TotalCount != 6 {
		t.Fatalf("unexpected variations %+v", variations)
	}
}

func TestHealthAndIndex(t *testing.T) {
	a := newTestAPI(t)
	var health struct {
		Status string `json:"status"`
	}
	a.call(http.MethodGet, "/health", "", nil, http.StatusOK, &health)
	if health.Status != "OK" {
		t.Fatalf("unexpected health %+v", health)
	}
	a.call(http.MethodGet, "/api/health", "", nil, http.StatusOK, nil)
	a.call(http.MethodGet, "/api", "", nil, http.StatusOK, nil)

	var msg message
	a.call(http.MethodGet, "/api/nope", "", nil, http.StatusNotFound, &msg)
	if msg.Message != "Not Found - /api/nope" {
		t.Fatalf("unexpected message %q", msg.Message)
	}
}
