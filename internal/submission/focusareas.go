package submission

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/donovan0902/project-hunt/pkg/types"
)

// CreateFocusArea adds an active focus area under group.
func (c *Coordinator) CreateFocusArea(ctx context.Context, name, group, description, callerID string) (area *types.FocusArea, err error) {
	const op = "create_focus_area"
	defer func() { record(op, err) }()

	if callerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.NewError(types.KindValidation, op, "focus area name is required")
	}
	group = strings.TrimSpace(group)
	if group == "" {
		return nil, types.NewError(types.KindValidation, op, "focus area group is required")
	}

	area = &types.FocusArea{
		ID:          uuid.NewString(),
		Name:        name,
		Group:       group,
		Description: strings.TrimSpace(description),
		Active:      true,
	}
	if err := c.store.CreateFocusArea(ctx, area); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Info("focus area created",
		zap.String("focus_area_id", area.ID), zap.String("group", group), zap.String("caller_id", callerID))
	return area, nil
}

// ListFocusAreas returns the active focus areas ordered by group, then name.
func (c *Coordinator) ListFocusAreas(ctx context.Context) ([]*types.FocusArea, error) {
	return c.store.ListFocusAreas(ctx, false)
}

// GroupFocusAreas buckets areas by group, keeping their order within each.
func GroupFocusAreas(areas []*types.FocusArea) map[string][]*types.FocusArea {
	grouped := make(map[string][]*types.FocusArea)
	for _, a := range areas {
		grouped[a.Group] = append(grouped[a.Group], a)
	}
	return grouped
}

// GetFocusArea returns a focus area, archived or not.
func (c *Coordinator) GetFocusArea(ctx context.Context, id string) (*types.FocusArea, error) {
	area, err := c.store.GetFocusArea(ctx, id)
	if err != nil {
		return nil, translate("get_focus_area", err)
	}
	return area, nil
}

// ArchiveFocusArea hides a focus area from listings. Entries already tagged
// with it keep the tag.
func (c *Coordinator) ArchiveFocusArea(ctx context.Context, id, callerID string) error {
	return c.setFocusAreaActive(ctx, "archive_focus_area", id, false, callerID)
}

// ReactivateFocusArea lists an archived focus area again.
func (c *Coordinator) ReactivateFocusArea(ctx context.Context, id, callerID string) error {
	return c.setFocusAreaActive(ctx, "reactivate_focus_area", id, true, callerID)
}

func (c *Coordinator) setFocusAreaActive(ctx context.Context, op, id string, active bool, callerID string) (err error) {
	defer func() { record(op, err) }()

	if callerID == "" {
		return types.NewError(types.KindUnauthorized, op, "caller is required")
	}
	if err := c.store.SetFocusAreaActive(ctx, id, active); err != nil {
		return translate(op, err)
	}
	c.logger.Info("focus area updated",
		zap.String("focus_area_id", id), zap.Bool("active", active), zap.String("caller_id", callerID))
	return nil
}
