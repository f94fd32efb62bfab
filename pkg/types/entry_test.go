package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldsPatchMerge(t *testing.T) {
	base := Fields{
		Name:         "Brew Log",
		Summary:      "Track mash temperatures",
		Headline:     "Every batch",
		Link:         "https://brew.example.com",
		TeamID:       "team-1",
		Readiness:    ReadinessReady,
		FocusAreaIDs: []string{"fa-1"},
	}

	summary := "Track mash temperatures and gravity"
	merged := (&FieldsPatch{Summary: &summary}).Merge(base)
	assert.Equal(t, summary, merged.Summary)
	assert.Equal(t, base.Name, merged.Name)
	assert.Equal(t, base.Headline, merged.Headline)
	assert.Equal(t, base.Link, merged.Link)
	assert.Equal(t, base.TeamID, merged.TeamID)
	assert.Equal(t, ReadinessReady, merged.Readiness)
	assert.Equal(t, []string{"fa-1"}, merged.FocusAreaIDs)

	empty := ""
	merged = (&FieldsPatch{Headline: &empty, FocusAreaIDs: &[]string{}}).Merge(base)
	assert.Empty(t, merged.Headline)
	assert.Empty(t, merged.FocusAreaIDs)
	assert.Equal(t, []string{"fa-1"}, base.FocusAreaIDs)

	assert.True(t, (&FieldsPatch{}).IsEmpty())
	assert.False(t, (&FieldsPatch{Headline: &empty}).IsEmpty())
}

func TestFieldsNormalizeFocusAreas(t *testing.T) {
	f := Fields{FocusAreaIDs: []string{" b ", "a", "", "b"}}
	f.Normalize()
	assert.Equal(t, []string{"a", "b"}, f.FocusAreaIDs)
	assert.Equal(t, ReadinessInProgress, f.Readiness)

	f = Fields{FocusAreaIDs: []string{" "}}
	f.Normalize()
	assert.Nil(t, f.FocusAreaIDs)
}
