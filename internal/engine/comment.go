package engine

import "time"

// Mode is a comment's moderation state. Values are stable wire/storage
// constants; a removed row has no mode because it has no row.
type Mode int

const (
	ModeApproved  Mode = 1 // publicly visible
	ModePending   Mode = 2 // awaiting moderator activation
	ModeTombstone Mode = 4 // deleted, row kept only to anchor replies
)

// EntryMode picks the state a freshly created comment enters with.
func EntryMode(moderated bool) Mode {
	if moderated {
		return ModePending
	}
	return ModeApproved
}

// Thread anchors the comments of one page URI. A thread row exists iff at
// least one comment row (any mode, tombstones included) references it.
type Thread struct {
	ID    int64
	URI   string
	Title string
}

// Comment is a single comment row. ID is globally monotonic across all
// threads and never reused, even after physical deletion.
type Comment struct {
	ID           int64
	ThreadID     int64
	Parent       *int64
	Created      time.Time
	Modified     *time.Time
	Mode         Mode
	RemoteAddr   string
	Text         string
	Author       *string
	Email        *string
	Website      *string
	Likes        int
	Dislikes     int
	Voters       []string
	Notification bool
}

// HasVoter reports whether fingerprint already voted on this comment.
// The creator's own fingerprint is seeded at creation, so self-votes
// never count.
func (c *Comment) HasVoter(fingerprint string) bool {
	for _, v := range c.Voters {
		if v == fingerprint {
			return true
		}
	}
	return false
}

// Visible reports whether the comment participates in display queries.
// Tombstones stay visible as anchors; their content is already cleared.
func (c *Comment) Visible() bool {
	return c.Mode == ModeApproved || c.Mode == ModeTombstone
}

// Edit is the set of fields a client or moderator may change. Created and
// ID are immutable; Modified is stamped by the store.
type Edit struct {
	Text    string
	Author  *string
	Website *string
}

// LatestComment pairs a comment with its thread URI for cross-thread
// listings.
type LatestComment struct {
	Comment
	URI string
}
