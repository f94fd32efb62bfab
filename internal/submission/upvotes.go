package submission

import (
	"context"
	"fmt"

	"github.com/donovan0902/project-hunt/internal/storage"
	"github.com/donovan0902/project-hunt/pkg/types"
)

// UpvoteResult is the state after a toggle.
type UpvoteResult struct {
	Upvoted bool `json:"upvoted"`
	Count   int  `json:"count"`
}

// ToggleUpvote adds the caller's upvote to an Active entry, or removes it if
// present. Check and write share one transaction.
func (c *Coordinator) ToggleUpvote(ctx context.Context, entryID, callerID string) (res *UpvoteResult, err error) {
	const op = "toggle_upvote"
	defer func() { record(op, err) }()

	if callerID == "" {
		return nil, types.NewError(types.KindUnauthorized, op, "caller is required")
	}

	res = &UpvoteResult{}
	err = c.withTx(ctx, func(tx storage.Tx) error {
		entry, err := tx.GetEntry(ctx, entryID)
		if err != nil {
			return translate(op, err)
		}
		if !entry.IsActive() {
			return types.NewError(types.KindInvalidState, op, "only published entries can be upvoted")
		}

		has, err := tx.HasUpvote(ctx, entryID, callerID)
		if err != nil {
			return err
		}
		if has {
			res.Count, err = tx.RemoveUpvote(ctx, entryID, callerID)
		} else {
			res.Count, err = tx.AddUpvote(ctx, entryID, callerID)
			res.Upvoted = true
		}
		return err
	})
	if err != nil {
		if types.KindOf(err) != types.KindUnknown {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	c.ranker.InvalidateCache()
	return res, nil
}
