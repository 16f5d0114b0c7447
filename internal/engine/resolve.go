package engine

import (
	"context"
	"errors"
)

// CommentGetter looks up a comment by its global id. Implementations
// return ErrNotFound (wrapped or bare) when no such row exists.
type CommentGetter func(ctx context.Context, id int64) (*Comment, error)

// ResolveParent computes the accepted parent for a new comment in the
// given thread. Unknown ids resolve to nil (new root). Replying to a
// reply is flattened to that reply's root, so nesting depth never exceeds
// one. A candidate from another thread resolves to nil with no further
// fallback. Must run inside the same transaction as the insert, so a
// concurrently deleted parent cannot be accepted.
func ResolveParent(ctx context.Context, get CommentGetter, threadID int64, requested *int64) (*int64, error) {
	if requested == nil {
		return nil, nil
	}

	c, err := get(ctx, *requested)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	if c.Parent != nil {
		root, err := get(ctx, *c.Parent)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Dangling parent reference; nothing to anchor to.
				return nil, nil
			}
			return nil, err
		}
		c = root
	}

	if c.ThreadID != threadID {
		return nil, nil
	}
	id := c.ID
	return &id, nil
}
