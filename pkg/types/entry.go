package types

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the lifecycle state of an Entry.
type Status string

const (
	StatusPending Status = "pending"
	StatusActive  Status = "active"
)

// Readiness describes how usable a listed project is.
type Readiness string

const (
	ReadinessInProgress Readiness = "in_progress"
	ReadinessReady      Readiness = "ready_to_use"
)

// Valid reports whether r is a known readiness value.
func (r Readiness) Valid() bool {
	return r == ReadinessInProgress || r == ReadinessReady
}

// Entry represents a project listing.
type Entry struct {
	// Identification
	ID      string
	OwnerID string
	TeamID  string // Empty when the entry has no team

	// Content
	Name      string
	Summary   string
	Headline  string
	Link      string
	Readiness Readiness

	// FocusAreaIDs is sorted and free of duplicates.
	FocusAreaIDs []string

	// Lifecycle
	Status       Status
	EmbeddingKey string // Empty until an embedding has been attached
	DerivedText  string
	Upvotes      int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the entry is publicly visible.
func (e *Entry) IsActive() bool {
	return e.Status == StatusActive
}

// HasEmbedding reports whether an embedding key has been attached.
func (e *Entry) HasEmbedding() bool {
	return e.EmbeddingKey != ""
}

// Fields are the user-editable parts of an Entry.
type Fields struct {
	Name         string    `json:"name"`
	Summary      string    `json:"summary"`
	Headline     string    `json:"headline,omitempty"`
	Link         string    `json:"link,omitempty"`
	TeamID       string    `json:"team_id,omitempty"`
	Readiness    Readiness `json:"readiness,omitempty"`
	FocusAreaIDs []string  `json:"focus_area_ids,omitempty"`
}

// FieldsOf returns the editable fields of e.
func FieldsOf(e *Entry) Fields {
	return Fields{
		Name:         e.Name,
		Summary:      e.Summary,
		Headline:     e.Headline,
		Link:         e.Link,
		TeamID:       e.TeamID,
		Readiness:    e.Readiness,
		FocusAreaIDs: append([]string(nil), e.FocusAreaIDs...),
	}
}

// Normalize trims whitespace and fills in the default readiness.
func (f *Fields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Summary = strings.TrimSpace(f.Summary)
	f.Headline = strings.TrimSpace(f.Headline)
	f.Link = strings.TrimSpace(f.Link)
	f.TeamID = strings.TrimSpace(f.TeamID)
	if f.Readiness == "" {
		f.Readiness = ReadinessInProgress
	}
	f.FocusAreaIDs = normalizeIDs(f.FocusAreaIDs)
}

// normalizeIDs trims, drops blanks and duplicates, and sorts.
func normalizeIDs(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// Validate checks the fields against the listing rules. minSummary is the
// minimum summary length in characters.
func (f *Fields) Validate(minSummary int) error {
	if strings.TrimSpace(f.Name) == "" {
		return NewError(KindValidation, "validate", "name is required")
	}

	if n := utf8.RuneCountInString(strings.TrimSpace(f.Summary)); n < minSummary {
		return NewError(KindValidation, "validate",
			fmt.Sprintf("summary must be at least %d characters (got %d)", minSummary, n))
	}

	if f.Link != "" {
		u, err := url.Parse(f.Link)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return NewError(KindValidation, "validate", "link must be an absolute http(s) URL")
		}
	}

	if f.Readiness != "" && !f.Readiness.Valid() {
		return NewError(KindValidation, "validate", fmt.Sprintf("unknown readiness %q", f.Readiness))
	}

	return nil
}

// Apply copies the fields onto an entry.
func (f *Fields) Apply(e *Entry) {
	e.Name = f.Name
	e.Summary = f.Summary
	e.Headline = f.Headline
	e.Link = f.Link
	e.TeamID = f.TeamID
	e.Readiness = f.Readiness
	e.FocusAreaIDs = append([]string(nil), f.FocusAreaIDs...)
}

// FieldsPatch is a partial edit. Nil members keep the stored value; a
// pointer to the zero value clears an optional field.
type FieldsPatch struct {
	Name         *string    `json:"name,omitempty"`
	Summary      *string    `json:"summary,omitempty"`
	Headline     *string    `json:"headline,omitempty"`
	Link         *string    `json:"link,omitempty"`
	TeamID       *string    `json:"team_id,omitempty"`
	Readiness    *Readiness `json:"readiness,omitempty"`
	FocusAreaIDs *[]string  `json:"focus_area_ids,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *FieldsPatch) IsEmpty() bool {
	return p.Name == nil && p.Summary == nil && p.Headline == nil && p.Link == nil &&
		p.TeamID == nil && p.Readiness == nil && p.FocusAreaIDs == nil
}

// Merge returns base with the set members of p applied.
func (p *FieldsPatch) Merge(base Fields) Fields {
	if p.Name != nil {
		base.Name = *p.Name
	}
	if p.Summary != nil {
		base.Summary = *p.Summary
	}
	if p.Headline != nil {
		base.Headline = *p.Headline
	}
	if p.Link != nil {
		base.Link = *p.Link
	}
	if p.TeamID != nil {
		base.TeamID = *p.TeamID
	}
	if p.Readiness != nil {
		base.Readiness = *p.Readiness
	}
	if p.FocusAreaIDs != nil {
		base.FocusAreaIDs = append([]string(nil), (*p.FocusAreaIDs)...)
	}
	return base
}

// EmbedText is the text that gets embedded for an entry: name, headline and
// summary joined by single spaces, skipping empty parts.
func EmbedText(name, headline, summary string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, headline, summary} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Team groups entries under a shared name.
type Team struct {
	ID          string
	Name        string
	Description string
	CreatedAt   time.Time
}

// FocusArea is a topic entries can be tagged with. An entry may carry any
// number of them. Archived focus areas are hidden from listings but stay on
// the entries already tagged with them.
type FocusArea struct {
	ID          string
	Name        string
	Group       string
	Description string
	Active      bool
	CreatedAt   time.Time
}
