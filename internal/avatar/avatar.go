// Package avatar builds ui-avatars.com initials image URLs.
package avatar

import (
	"net/url"
	"strconv"
	"strings"
)

const baseURL = "https://ui-avatars.com/api/"

// Options tune a generated avatar.  Zero values take the defaults.
type Options struct {
	Size       int
	Background string // hex without '#'
	Color      string
	Rounded    bool
	Bold       bool
}

type palette struct{ background, color string }

var (
	adminColors = palette{"e74c3c", "ffffff"}
	userColors  = palette{"27ae60", "ffffff"}
	themeColors = map[string]palette{
		"light": {"3498db", "ffffff"},
		"dark":  {"2c3e50", "ecf0f1"},
	}
)

// URL returns the avatar URL for name.
func URL(name string, o Options) string {
	if o.Size <= 0 {
		o.Size = 150
	}
	if o.Background == "" {
		o.Background = themeColors["light"].background
	}
	if o.Color == "" {
		o.Color = "ffffff"
	}
	v := url.Values{}
	v.Set("name", strings.TrimSpace(name))
	v.Set("size", strconv.Itoa(o.Size))
	v.Set("background", o.Background)
	v.Set("color", o.Color)
	v.Set("bold", strconv.FormatBool(o.Bold))
	v.Set("format", "png")
	v.Set("font-size", "0.5")
	v.Set("length", "2")
	v.Set("rounded", strconv.FormatBool(o.Rounded))
	v.Set("uppercase", "true")
	return baseURL + "?" + v.Encode()
}

// Resolve keeps a caller supplied http(s) URL and otherwise generates one in
// the colours of theme.  Unknown themes fall back to light.
func Resolve(provided, name, theme string) string {
	if strings.HasPrefix(provided, "http") {
		return provided
	}
	p, ok := themeColors[theme]
	if !ok {
		p = themeColors["light"]
	}
	return URL(name, Options{Background: p.background, Color: p.color, Rounded: true, Bold: true})
}

// ForRole generates an avatar coloured by role.
func ForRole(name string, isAdmin bool) string {
	p := userColors
	if isAdmin {
		p = adminColors
	}
	return URL(name, Options{Background: p.background, Color: p.color, Rounded: true, Bold: true})
}

// Variation is one selectable avatar style.
type Variation struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	URL             string `json:"url"`
	BackgroundColor string `json:"backgroundColor"`
}

var variationColors = []struct{ hex, name string }{
	{"3498db", "Blue"},
	{"9b59b6", "Purple"},
	{"e74c3c", "Red"},
	{"f39c12", "Orange"},
	{"27ae60", "Green"},
	{"34495e", "Dark Gray"},
}

// Variations returns the six colour variations offered for name.
func Variations(name string) []Variation {
	out := make([]Variation, 0, len(variationColors))
	for i, c := range variationColors {
		out = append(out, Variation{
			ID:              i + 1,
			Name:            c.name,
			URL:             URL(name, Options{Background: c.hex, Color: "ffffff", Rounded: true, Bold: true}),
			BackgroundColor: "#" + c.hex,
		})
	}
	return out
}
