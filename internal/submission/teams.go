package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// CreateTeam creates a team any signed-in caller can attach entries to.
func (c *Coordinator) CreateTeam(ctx context.Context, name, description, callerID string) (team *types.Team, err error) {
	const op = "create_team"
	defer func() { record(op, err) }()

	if callerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.NewError(types.KindValidation, op, "team name is required")
	}

	team = &types.Team{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
	}
	if err := c.store.CreateTeam(ctx, team); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Info("team created", zap.String("team_id", team.ID), zap.String("caller_id", callerID))
	return team, nil
}

// RenameTeam renames a team and refreshes the derived text of its entries in
// the same transaction.
func (c *Coordinator) RenameTeam(ctx context.Context, teamID, name, callerID string) (team *types.Team, err error) {
	const op = "rename_team"
	defer func() { record(op, err) }()

	if callerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.NewError(types.KindValidation, op, "team name is required")
	}

	var refreshed int
	err = c.withTx(ctx, func(tx storage.Tx) error {
		t, err := tx.GetTeam(ctx, teamID)
		if err != nil {
			return translate(op, err)
		}
		t.Name = name
		if err := tx.UpdateTeam(ctx, t); err != nil {
			return err
		}
		refreshed, err = c.maintainer.RefreshTeam(ctx, tx, teamID)
		if err != nil {
			return err
		}
		team = t
		return nil
	})
	if err != nil {
		if types.KindOf(err) != types.KindUnknown {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if refreshed > 0 {
		c.ranker.InvalidateCache()
	}

	c.logger.Info("team renamed", zap.String("team_id", teamID), zap.Int("entries_refreshed", refreshed))
	return team, nil
}

// GetTeam returns a team.
func (c *Coordinator) GetTeam(ctx context.Context, teamID string) (*types.Team, error) {
	team, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, translate("get_team", err)
	}
	return team, nil
}
