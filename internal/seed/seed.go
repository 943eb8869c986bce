// Package seed fills an empty store with sample users, categories and
// tasks for local development.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/task-management-api/internal/avatar"
	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/repository"
	"github.com/iliyamo/task-management-api/internal/utils"
)

// Password is the password of every seeded account.
const Password = "123456"

// Summary reports what Run created.
type Summary struct {
	Users      int
	Categories int
	Tasks      int
}

// Seeder writes the sample data set.
type Seeder struct {
	Store      *repository.Store
	BcryptCost int
	Log        log.FieldLogger
	Now        func() time.Time
}

type sampleUser struct {
	name, email string
	admin       bool
	active      bool
	verified    bool
	theme       string
	lastLogin   time.Duration
	notify      model.Notifications
	dateFormat  string
	timezone    string
}

var users = []sampleUser{
	{"Admin User", "admin@email.com", true, true, true, "light", 2 * time.Hour,
		model.Notifications{Email: true, DeadlineReminders: true, TaskUpdates: true}, "DD/MM/YYYY", "America/New_York"},
	{"John Doe", "john@email.com", false, true, true, "dark", 30 * time.Minute,
		model.Notifications{Email: true, DeadlineReminders: true}, "DD/MM/YYYY", "Europe/London"},
	{"Jane Smith", "jane@email.com", false, true, true, "light", time.Hour,
		model.Notifications{DeadlineReminders: true, TaskUpdates: true}, "YYYY-MM-DD", "America/Los_Angeles"},
	{"Mike Johnson", "mike@email.com", false, true, false, "dark", 24 * time.Hour,
		model.Notifications{Email: true, TaskUpdates: true}, "DD/MM/YYYY", "Australia/Sydney"},
	{"Sarah Wilson", "sarah@email.com", false, false, true, "light", 7 * 24 * time.Hour,
		model.Notifications{Email: true, DeadlineReminders: true, TaskUpdates: true}, "DD/MM/YYYY", "Europe/Berlin"},
}

var customCategories = []struct {
	name, description, color, icon string
}{
	{"Development", "Software development tasks", "#2c3e50", "code"},
	{"Design", "UI/UX design tasks", "#e67e22", "paint-brush"},
	{"Testing", "Quality assurance and testing", "#8e44ad", "bug"},
}

type sampleTask struct {
	title, description string
	status             model.Status
	priority           model.Priority
	group              string
	dueInDays          int
	estimated, actual  float64
	progression        int
	tags               []string
}

var tasks = []sampleTask{
	{"Set up project repository", "Initialize the repository and CI pipeline", model.StatusCompleted, model.PriorityHigh, "Development", -5, 4, 3.5, 100, []string{"setup", "devops"}},
	{"Implement authentication", "JWT login, refresh and logout endpoints", model.StatusInProgress, model.PriorityUrgent, "Development", 3, 12, 6, 60, []string{"backend", "security"}},
	{"Design landing page", "Wireframes and final mockups for the landing page", model.StatusPending, model.PriorityMedium, "Design", 10, 8, 0, 0, []string{"ui", "marketing"}},
	{"Write integration tests", "Cover the task and category endpoints", model.StatusPending, model.PriorityHigh, "Testing", 7, 10, 0, 0, []string{"qa"}},
	{"Weekly grocery shopping", "Milk, eggs, vegetables and coffee", model.StatusPending, model.PriorityLow, "", 2, 1, 0, 0, []string{"errands"}},
	{"Morning run", "Run 5km before work", model.StatusCompleted, model.PriorityMedium, "", -1, 0.5, 0.5, 100, []string{"fitness"}},
	{"Quarterly report", "Prepare the Q3 report for the board", model.StatusInProgress, model.PriorityHigh, "", -2, 6, 4, 70, []string{"reporting"}},
	{"Refactor task queries", "Move filtering into the query builder", model.StatusInProgress, model.PriorityMedium, "Development", 14, 5, 2, 40, []string{"backend", "refactor"}},
	{"Read Go concurrency book", "Finish chapters 4 to 6", model.StatusPending, model.PriorityLow, "", 30, 6, 0, 0, []string{"reading"}},
	{"Update design system colors", "Align the palette with the new brand", model.StatusCancelled, model.PriorityLow, "Design", 20, 3, 1, 10, []string{"ui"}},
	{"Dentist appointment", "Book a check-up", model.StatusPending, model.PriorityMedium, "", 5, 1, 0, 0, []string{"health"}},
	{"Regression test release 1.2", "Run the full regression suite", model.StatusCompleted, model.PriorityHigh, "Testing", -3, 4, 5, 100, []string{"qa", "release"}},
}

func (s *Seeder) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Destroy removes every record from the store.
func (s *Seeder) Destroy(ctx context.Context) error {
	if err := s.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	s.Log.Info("seed.destroyed")
	return nil
}

// Run clears the store and imports the sample data.  Tasks are spread over
// the admin and the first two regular users; the first regular user gets the
// custom categories.
func (s *Seeder) Run(ctx context.Context) (Summary, error) {
	if err := s.Destroy(ctx); err != nil {
		return Summary{}, err
	}
	now := s.now()

	hash, err := utils.HashPassword(Password, s.BcryptCost)
	if err != nil {
		return Summary{}, fmt.Errorf("hash password: %w", err)
	}
	created := make([]*model.User, 0, len(users))
	for _, su := range users {
		u := newUser(su, hash, now)
		if err := s.Store.Users.Create(ctx, u); err != nil {
			return Summary{}, fmt.Errorf("create user %s: %w", su.email, err)
		}
		created = append(created, u)
	}
	s.Log.WithField("count", len(created)).Info("seed.users.imported")
	admin, first, second := created[0], created[1], created[2]

	defaults := model.DefaultCategories(admin.ID, now, uuid.NewString)
	if err := s.Store.Categories.CreateMany(ctx, defaults); err != nil {
		return Summary{}, fmt.Errorf("create default categories: %w", err)
	}
	custom := make([]*model.Category, 0, len(customCategories))
	for i, cc := range customCategories {
		custom = append(custom, &model.Category{
			ID:          uuid.NewString(),
			Name:        cc.name,
			NameKey:     model.NameKey(cc.name),
			Description: cc.description,
			Color:       cc.color,
			Icon:        cc.icon,
			UserID:      first.ID,
			IsActive:    true,
			SortOrder:   i + 1,
			Settings:    model.DefaultCategorySettings(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if err := s.Store.Categories.CreateMany(ctx, custom); err != nil {
		return Summary{}, fmt.Errorf("create custom categories: %w", err)
	}
	s.Log.WithField("count", len(defaults)+len(custom)).Info("seed.categories.imported")

	byGroup := make(map[string]string, len(custom))
	for _, c := range custom {
		byGroup[c.Name] = c.ID
	}
	for i, st := range tasks {
		var owner *model.User
		var categoryID string
		switch i % 3 {
		case 0:
			owner, categoryID = admin, defaults[i%len(defaults)].ID
		case 1:
			// categories are per user; ungrouped tasks of this user stay detached
			owner, categoryID = first, byGroup[st.group]
		default:
			owner, categoryID = second, ""
		}
		t := newTask(i, st, owner.ID, categoryID, now)
		if err := s.Store.Tasks.Create(ctx, t); err != nil {
			return Summary{}, fmt.Errorf("create task %q: %w", st.title, err)
		}
	}
	s.Log.WithField("count", len(tasks)).Info("seed.tasks.imported")

	all := append(defaults, custom...)
	for _, c := range all {
		if _, err := s.Store.Categories.RefreshTaskCount(ctx, c.ID, c.UserID); err != nil {
			return Summary{}, fmt.Errorf("refresh task count: %w", err)
		}
	}

	sum := Summary{Users: len(created), Categories: len(all), Tasks: len(tasks)}
	s.Log.WithFields(log.Fields{
		"users": sum.Users, "categories": sum.Categories, "tasks": sum.Tasks,
	}).Info("seed.imported")
	return sum, nil
}

func newUser(su sampleUser, hash string, now time.Time) *model.User {
	last := now.Add(-su.lastLogin)
	av := avatar.Resolve("", su.name, su.theme)
	if su.admin {
		av = avatar.ForRole(su.name, true)
	}
	return &model.User{
		ID:              uuid.NewString(),
		Name:            su.name,
		Email:           model.NormalizeEmail(su.email),
		PasswordHash:    hash,
		Avatar:          av,
		IsAdmin:         su.admin,
		IsActive:        su.active,
		IsEmailVerified: su.verified,
		LastLogin:       &last,
		Preferences: model.Preferences{
			Theme:         su.theme,
			Notifications: su.notify,
			DateFormat:    su.dateFormat,
			Timezone:      su.timezone,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func newTask(i int, st sampleTask, userID, categoryID string, now time.Time) *model.Task {
	deadline := now.AddDate(0, 0, st.dueInDays)
	start := now.AddDate(0, 0, -7)
	t := &model.Task{
		ID:             uuid.NewString(),
		Title:          st.title,
		Description:    st.description,
		Status:         model.StatusPending,
		Priority:       st.priority,
		CategoryID:     categoryID,
		UserID:         userID,
		Deadline:       &deadline,
		StartDate:      &start,
		EstimatedHours: st.estimated,
		ActualHours:    st.actual,
		Tags:           model.NormalizeTags(st.tags),
		Progression:    st.progression,
		CreatedAt:      start,
		UpdatedAt:      now,
	}
	model.ApplyStatusTransition(t, st.status, now)

	if i%4 == 0 {
		done := st.status == model.StatusCompleted
		phase1 := model.Subtask{ID: uuid.NewString(), Title: st.title + " - Phase 1", IsCompleted: done}
		if done {
			ts := now
			phase1.CompletedAt = &ts
		}
		t.Subtasks = []model.Subtask{
			phase1,
			{ID: uuid.NewString(), Title: st.title + " - Phase 2"},
		}
	}
	if i%5 == 0 {
		t.Comments = []model.Comment{{
			ID:        uuid.NewString(),
			UserID:    userID,
			Text:      "Started working on this task",
			CreatedAt: now.Add(-24 * time.Hour),
		}}
	}
	t.EnsureCollections()
	return t
}
