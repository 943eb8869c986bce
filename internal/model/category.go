package model

import "time"

// Category is a user-defined grouping for tasks.  Names are unique per
// user regardless of case.  TaskCount is a denormalized copy of the number
// of non-archived tasks in the category and may briefly lag behind writes.
type Category struct {
	ID          string           `json:"id" bson:"_id"`
	Name        string           `json:"name" bson:"name"`
	NameKey     string           `json:"-" bson:"nameKey"`
	Description string           `json:"description" bson:"description"`
	Color       string           `json:"color" bson:"color"`
	Icon        string           `json:"icon" bson:"icon"`
	UserID      string           `json:"user" bson:"user"`
	IsDefault   bool             `json:"isDefault" bson:"isDefault"`
	IsActive    bool             `json:"isActive" bson:"isActive"`
	SortOrder   int              `json:"sortOrder" bson:"sortOrder"`
	TaskCount   int64            `json:"taskCount" bson:"taskCount"`
	Settings    CategorySettings `json:"settings" bson:"settings"`
	CreatedAt   time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// CategorySettings holds per-category defaults for new tasks and the
// auto-archive policy.
type CategorySettings struct {
	DefaultPriority       Priority `json:"defaultPriority" bson:"defaultPriority"`
	DefaultEstimatedHours float64  `json:"defaultEstimatedHours" bson:"defaultEstimatedHours"`
	AutoArchive           bool     `json:"autoArchive" bson:"autoArchive"`
	AutoArchiveDays       int      `json:"autoArchiveDays" bson:"autoArchiveDays"`
}

const (
	DefaultCategoryColor = "#3498db"
	DefaultCategoryIcon  = "folder"
)

// DefaultCategorySettings returns the settings applied when none are given.
func DefaultCategorySettings() CategorySettings {
	return CategorySettings{
		DefaultPriority:       PriorityMedium,
		DefaultEstimatedHours: 1,
		AutoArchive:           false,
		AutoArchiveDays:       30,
	}
}

type defaultCategory struct {
	name, description, color, icon string
}

var defaultCategories = []defaultCategory{
	{"Personal", "Personal tasks and activities", "#e74c3c", "user"},
	{"Work", "Work-related tasks and projects", "#3498db", "briefcase"},
	{"Shopping", "Shopping lists and purchases", "#f39c12", "shopping-cart"},
	{"Health", "Health and fitness related tasks", "#27ae60", "heart"},
	{"Learning", "Educational and skill development tasks", "#9b59b6", "graduation-cap"},
}

// DefaultCategories builds the five bootstrap categories for a user.  IDs
// are assigned by newID so callers control id generation.
func DefaultCategories(userID string, now time.Time, newID func() string) []*Category {
	out := make([]*Category, 0, len(defaultCategories))
	for i, d := range defaultCategories {
		out = append(out, &Category{
			ID:          newID(),
			Name:        d.name,
			NameKey:     NameKey(d.name),
			Description: d.description,
			Color:       d.color,
			Icon:        d.icon,
			UserID:      userID,
			IsDefault:   true,
			IsActive:    true,
			SortOrder:   i + 1,
			Settings:    DefaultCategorySettings(),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return out
}
