// Package filterbar derives the state of the city/tag filter controls and
// emits filter changes to the page that owns the filter state.
package filterbar

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"hilalcal/internal/model"
)

// DefaultTagLimit is how many catalogue tags are shown before "show more".
const DefaultTagLimit = 16

// Handlers receive filter changes. Nil handlers are skipped.
type Handlers struct {
	OnCityChange func(city string)
	OnTagsChange func(tags []string)
	OnReset      func()
}

// Bar is the filter control strip. Its only own state is the show-all
// toggle; the selection itself lives with the page.
type Bar struct {
	Limit    int
	ShowAll  bool
	handlers Handlers
}

// New returns a Bar with show-all off. A non-positive limit uses
// DefaultTagLimit.
func New(limit int, h Handlers) *Bar {
	if limit <= 0 {
		limit = DefaultTagLimit
	}
	return &Bar{Limit: limit, handlers: h}
}

// SelectCity emits a city change.
func (b *Bar) SelectCity(city string) {
	if city == "" {
		city = model.AllCities
	}
	if b.handlers.OnCityChange != nil {
		b.handlers.OnCityChange(city)
	}
}

// ToggleTag flips tag in selected and emits the new selection.
func (b *Bar) ToggleTag(selected []string, tag string) []string {
	next := Toggle(selected, tag)
	if b.handlers.OnTagsChange != nil {
		b.handlers.OnTagsChange(next)
	}
	return next
}

// Reset emits a reset. The caller clears its filter to Reset().
func (b *Bar) Reset() {
	if b.handlers.OnReset != nil {
		b.handlers.OnReset()
	}
}

// ToggleShowAll flips the show-all switch. Filter changes never touch it.
func (b *Bar) ToggleShowAll() {
	b.ShowAll = !b.ShowAll
}

// Visible returns the tags to render for the given catalogue and selection.
func (b *Bar) Visible(catalogue, selected []string) []string {
	return VisibleTags(catalogue, selected, b.Limit, b.ShowAll)
}

// MoreLabel is the caption of the show-more button, or "" when the
// catalogue fits within the limit and no button is shown.
func (b *Bar) MoreLabel(catalogue []string) string {
	if len(catalogue) <= b.Limit {
		return ""
	}
	if b.ShowAll {
		return "Show fewer"
	}
	return "Show more (" + strconv.Itoa(len(catalogue)-b.Limit) + ")"
}

// VisibleTags returns the whole catalogue when showAll is set. Otherwise it
// returns the first limit catalogue entries followed by any selected tags
// outside that prefix, in selection order, so active filters stay visible.
func VisibleTags(catalogue, selected []string, limit int, showAll bool) []string {
	if showAll || limit >= len(catalogue) {
		out := make([]string, len(catalogue), len(catalogue)+len(selected))
		copy(out, catalogue)
		if showAll {
			return out
		}
		return appendMissing(out, selected)
	}
	if limit < 0 {
		limit = 0
	}
	out := make([]string, limit, limit+len(selected))
	copy(out, catalogue[:limit])
	return appendMissing(out, selected)
}

func appendMissing(prefix, selected []string) []string {
	in := make(map[string]struct{}, len(prefix))
	for _, t := range prefix {
		in[t] = struct{}{}
	}
	for _, t := range selected {
		if _, ok := in[t]; ok {
			continue
		}
		in[t] = struct{}{}
		prefix = append(prefix, t)
	}
	return prefix
}

// Toggle removes tag from selected if present and appends it otherwise.
// The input is not modified.
func Toggle(selected []string, tag string) []string {
	out := make([]string, 0, len(selected)+1)
	found := false
	for _, t := range selected {
		if t == tag {
			found = true
			continue
		}
		out = append(out, t)
	}
	if !found {
		out = append(out, tag)
	}
	return out
}

// Reset is the filter every reset lands on.
func Reset() model.FilterState {
	return model.DefaultFilter()
}

// FormatTagLabel upper-cases the first letter of each space separated word
// and leaves everything else as is.
func FormatTagLabel(tag string) string {
	words := strings.Split(tag, " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Chip is one rendered tag button.
type Chip struct {
	Tag    string `json:"tag"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Chips pairs each visible tag with its label and active flag.
func (b *Bar) Chips(catalogue, selected []string) []Chip {
	visible := b.Visible(catalogue, selected)
	fs := model.FilterState{Tags: selected}
	out := make([]Chip, 0, len(visible))
	for _, t := range visible {
		out = append(out, Chip{Tag: t, Label: FormatTagLabel(t), Active: fs.HasTag(t)})
	}
	return out
}
