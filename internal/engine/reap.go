package engine

import (
	"context"
	"errors"
	"time"
)

// Tx is the transactional slice of store operations the deletion policy
// runs against. Both store backends implement it on their transaction
// type, so the policy below executes atomically regardless of backend.
type Tx interface {
	CommentByID(ctx context.Context, id int64) (*Comment, error)
	ChildCount(ctx context.Context, id int64) (int, error)
	Tombstone(ctx context.Context, id int64) error
	Remove(ctx context.Context, id int64) error
	ThreadSize(ctx context.Context, threadID int64) (int, error)
	RemoveThread(ctx context.Context, threadID int64) error
}

// PurgeTx extends Tx with the lookup the age-based sweep needs.
type PurgeTx interface {
	Tx
	StalePending(ctx context.Context, before time.Time) ([]int64, error)
}

// Delete applies the tombstone-or-remove policy to one comment. With
// remaining children the row becomes a tombstone (content cleared, id and
// parent kept so the children stay anchored) and the tombstoned row is
// returned. Without children the row is physically removed, ancestor
// tombstones left childless are reaped, and nil is returned.
func Delete(ctx context.Context, tx Tx, id int64) (*Comment, error) {
	c, err := tx.CommentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	n, err := tx.ChildCount(ctx, id)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		if err := tx.Tombstone(ctx, id); err != nil {
			return nil, err
		}
		return tx.CommentByID(ctx, id)
	}

	if err := removeAndReap(ctx, tx, c); err != nil {
		return nil, err
	}
	return nil, nil
}

// Purge physically removes pending comments older than olderThan through
// the same removal policy, cascades included. Approved and tombstoned
// rows are never touched regardless of age.
func Purge(ctx context.Context, tx PurgeTx, olderThan time.Duration, now time.Time) (int, error) {
	ids, err := tx.StalePending(ctx, now.Add(-olderThan))
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		c, err := tx.CommentByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return removed, err
		}
		if c.Mode != ModePending {
			continue
		}
		if err := removeAndReap(ctx, tx, c); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// removeAndReap removes c, then walks the parent chain with an explicit
// work-list: a tombstone left with zero children carries no information
// and is removed as well. Afterwards the thread row is dropped if no
// comment of any mode references it.
func removeAndReap(ctx context.Context, tx Tx, c *Comment) error {
	work := []*Comment{c}
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		if err := tx.Remove(ctx, cur.ID); err != nil {
			return err
		}
		if cur.Parent == nil {
			continue
		}

		parent, err := tx.CommentByID(ctx, *cur.Parent)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return err
		}
		if parent.Mode != ModeTombstone {
			continue
		}
		n, err := tx.ChildCount(ctx, parent.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			work = append(work, parent)
		}
	}

	n, err := tx.ThreadSize(ctx, c.ThreadID)
	if err != nil {
		return err
	}
	if n == 0 {
		return tx.RemoveThread(ctx, c.ThreadID)
	}
	return nil
}
