package store

import (
	"context"
	"time"

	"github.com/example/comment-engine/internal/engine"
)

// Store is the narrow set of atomic operations the comment engine needs
// from a relational backend. Every mutating operation runs as one
// transaction, so parent resolution and the reap cascade observe a
// consistent snapshot. The store is the sole synchronization point; there
// is no in-process cache.
type Store interface {
	// Add resolves the requested parent (c.Parent) inside the insert
	// transaction, lazily creating the thread row for uri, and returns
	// the stored comment with its assigned id.
	Add(ctx context.Context, uri, title string, c engine.Comment) (engine.Comment, error)
	Get(ctx context.Context, id int64) (engine.Comment, error)
	// Update changes text (always) plus author/website when non-nil and
	// stamps Modified. Tombstones are not editable.
	Update(ctx context.Context, id int64, edit engine.Edit) (engine.Comment, error)
	// Activate flips a pending comment to approved. The bool reports
	// whether a transition happened; false means "already activated".
	Activate(ctx context.Context, id int64) (bool, error)
	// Delete applies the tombstone-or-remove policy. A non-nil result is
	// the tombstoned row; nil means the row (and possibly a chain of
	// ancestor tombstones, and an emptied thread) was removed.
	Delete(ctx context.Context, id int64) (*engine.Comment, error)
	// Purge removes never-activated pending comments older than
	// olderThan and reports how many were removed.
	Purge(ctx context.Context, olderThan time.Duration) (int, error)
	// Vote registers a like or dislike for fingerprint, at most once per
	// comment, and returns the comment with current tallies either way.
	Vote(ctx context.Context, id int64, upvote bool, fingerprint string) (engine.Comment, error)
	// Unsubscribe disables notifications for every comment by email in
	// the thread owning comment id.
	Unsubscribe(ctx context.Context, id int64, email string) error

	Thread(ctx context.Context, uri string) (engine.Thread, error)
	// CountByURIs returns approved-comment counts positionally matching
	// uris; unknown URIs count zero, never an error.
	CountByURIs(ctx context.Context, uris []string) ([]int64, error)
	// Count counts visible comments (approved and anchoring tombstones):
	// roots when parent is nil, direct children otherwise.
	Count(ctx context.Context, uri string, parent *int64) (int, error)
	// List returns visible comments ordered by created then id, roots
	// when parent is nil, direct children otherwise; limit 0 means all.
	List(ctx context.Context, uri string, parent *int64, limit int) ([]engine.Comment, error)
	// Latest returns the newest approved comments across all threads.
	// limit must be positive; there is no default clamping.
	Latest(ctx context.Context, limit int) ([]engine.LatestComment, error)
}
