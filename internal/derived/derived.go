// Package derived keeps the searchable derived text of an entry in sync with
// the fields it is computed from.
package derived

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/storage"
)

// Compose builds the derived text: name, headline, summary and team name
// joined by single spaces. Empty parts are skipped.
func Compose(name, headline, summary, teamName string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{name, headline, summary, teamName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Maintainer recomputes derived text after writes. It is run on the same
// transaction as the write that triggered it.
type Maintainer struct {
	logger *zap.Logger
}

// NewMaintainer creates a Maintainer. A nil logger disables logging.
func NewMaintainer(logger *zap.Logger) *Maintainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintainer{logger: logger}
}

// Refresh recomputes the derived text of one entry and persists it only if
// it changed. It reports whether a write happened.
func (m *Maintainer) Refresh(ctx context.Context, store storage.Storage, entryID string) (bool, error) {
	entry, err := store.GetEntry(ctx, entryID)
	if err != nil {
		return false, fmt.Errorf("load entry %s: %w", entryID, err)
	}

	var teamName string
	if entry.TeamID != "" {
		team, err := store.GetTeam(ctx, entry.TeamID)
		switch {
		case err == nil:
			teamName = team.Name
		case errors.Is(err, storage.ErrNotFound):
			// team removed; derive without it
		default:
			return false, fmt.Errorf("load team %s: %w", entry.TeamID, err)
		}
	}

	text := Compose(entry.Name, entry.Headline, entry.Summary, teamName)
	if text == entry.DerivedText {
		return false, nil
	}

	if err := store.SetDerivedText(ctx, entryID, text); err != nil {
		return false, fmt.Errorf("persist derived text for %s: %w", entryID, err)
	}

	m.logger.Debug("derived text updated", zap.String("entry_id", entryID), zap.Int("length", len(text)))
	return true, nil
}

// RefreshTeam refreshes every entry that belongs to a team and returns how
// many were rewritten.
func (m *Maintainer) RefreshTeam(ctx context.Context, store storage.Storage, teamID string) (int, error) {
	ids, err := store.ListEntryIDsByTeam(ctx, teamID)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		changed, err := m.Refresh(ctx, store, id)
		if err != nil {
			return updated, err
		}
		if changed {
			updated++
		}
	}
	return updated, nil
}
