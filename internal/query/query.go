// Package query turns listing request parameters into owner-scoped filter
// specifications and page windows.  Storage backends translate a TaskQuery
// or CategoryQuery into their own predicate language; the owner predicate
// is always part of the translation.
package query

import (
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/task-management-api/internal/model"
	"github.com/iliyamo/task-management-api/internal/validation"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// TaskQuery is the filter specification for task listings.  UserID is
// injected from the authenticated identity and is never read from the
// request parameters.
type TaskQuery struct {
	UserID          string
	Keyword         string
	Status          model.Status
	Priority        model.Priority
	CategoryID      string
	IncludeArchived bool
	DueBefore       *time.Time
	DueAfter        *time.Time
	Page            int
	PageSize        int
}

// CategoryQuery is the filter specification for category listings.
// IsActive and IsDefault are tri-state: nil means no constraint.
type CategoryQuery struct {
	UserID    string
	Keyword   string
	IsActive  *bool
	IsDefault *bool
	Page      int
	PageSize  int
	Paged     bool
}

// UserQuery filters the admin user listing.
type UserQuery struct {
	Keyword  string
	Page     int
	PageSize int
}

// ParseTaskQuery reads task listing parameters.  Unknown status or
// priority values and unparseable dates are reported as validation errors.
func ParseTaskQuery(userID string, v url.Values) (TaskQuery, error) {
	q := TaskQuery{
		UserID:          userID,
		Keyword:         strings.TrimSpace(v.Get("keyword")),
		CategoryID:      strings.TrimSpace(v.Get("category")),
		IncludeArchived: v.Get("includeArchived") == "true",
	}
	q.Page, q.PageSize = parsePaging(v)

	errs := &validation.Errors{}
	if s := strings.TrimSpace(v.Get("status")); s != "" {
		q.Status = model.Status(s)
		if !q.Status.Valid() {
			errs.Add("status", "Invalid status filter: "+s)
		}
	}
	if p := strings.TrimSpace(v.Get("priority")); p != "" {
		q.Priority = model.Priority(p)
		if !q.Priority.Valid() {
			errs.Add("priority", "Invalid priority filter: "+p)
		}
	}
	var err error
	if q.DueBefore, err = parseBound(v.Get("dueBefore"), true); err != nil {
		errs.Add("dueBefore", "Invalid date for dueBefore: "+v.Get("dueBefore"))
	}
	if q.DueAfter, err = parseBound(v.Get("dueAfter"), false); err != nil {
		errs.Add("dueAfter", "Invalid date for dueAfter: "+v.Get("dueAfter"))
	}
	return q, errs.OrNil()
}

// ParseCategoryQuery reads category listing parameters.  Paging is applied
// only when pageNumber or pageSize is present.
func ParseCategoryQuery(userID string, v url.Values) CategoryQuery {
	q := CategoryQuery{
		UserID:    userID,
		Keyword:   strings.TrimSpace(v.Get("keyword")),
		IsActive:  parseTriState(v.Get("isActive")),
		IsDefault: parseTriState(v.Get("isDefault")),
	}
	q.Paged = v.Has("pageNumber") || v.Has("pageSize")
	q.Page, q.PageSize = parsePaging(v)
	return q
}

// ParseUserQuery reads the admin user listing parameters.
func ParseUserQuery(v url.Values) UserQuery {
	q := UserQuery{Keyword: strings.TrimSpace(v.Get("keyword"))}
	q.Page, q.PageSize = parsePaging(v)
	return q
}

func parsePaging(v url.Values) (int, int) {
	page := positiveInt(v.Get("pageNumber"), DefaultPage)
	size := positiveInt(v.Get("pageSize"), DefaultPageSize)
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func positiveInt(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return def
	}
	return n
}

func parseTriState(s string) *bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		b := true
		return &b
	case "false":
		b := false
		return &b
	}
	return nil
}

// parseBound accepts RFC 3339 timestamps or calendar dates.  A calendar
// date used as an upper bound covers the whole day.
func parseBound(s string, upper bool) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	if upper {
		t = t.Add(24*time.Hour - time.Second)
	}
	return &t, nil
}

// KeywordPattern returns a case-insensitive regular expression matching the
// keyword literally.
func KeywordPattern(keyword string) string {
	return "(?i)" + regexp.QuoteMeta(keyword)
}

// LikeEscape is the escape character used by LikePattern.
const LikeEscape = "!"

// LikePattern returns a lowercase SQL LIKE pattern matching keyword as a
// literal substring.  It must be used with ESCAPE '!'.
func LikePattern(keyword string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(strings.ToLower(keyword)) + "%"
}

// Page describes a window over a result set of Total records.
type Page struct {
	Page    int   `json:"page"`
	Size    int   `json:"-"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	HasMore bool  `json:"hasMore"`
}

// NewPage computes the page count and hasMore flag for a result set.
func NewPage(page, size int, total int64) Page {
	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	}
	pages := int(math.Ceil(float64(total) / float64(size)))
	return Page{
		Page:    page,
		Size:    size,
		Pages:   pages,
		Total:   total,
		HasMore: page < pages,
	}
}

// Skip is the number of records preceding the page.
func (p Page) Skip() int { return (p.Page - 1) * p.Size }
