package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/comment-engine/internal/engine"
)

// Memory is an in-memory Store for development and tests. A single mutex
// stands in for the database transaction: every mutating operation holds
// it end to end, which gives the same atomicity the Postgres backend gets
// from its transactions.
type Memory struct {
	mu          sync.Mutex
	nextComment int64
	nextThread  int64
	threads     map[int64]engine.Thread
	byURI       map[string]int64
	comments    map[int64]engine.Comment
}

func NewMemory() *Memory {
	return &Memory{
		threads:  make(map[int64]engine.Thread),
		byURI:    make(map[string]int64),
		comments: make(map[int64]engine.Comment),
	}
}

// memTx implements engine.Tx with direct map access. Callers must hold
// m.mu for the whole transaction.
type memTx struct {
	m *Memory
}

func (t memTx) CommentByID(_ context.Context, id int64) (*engine.Comment, error) {
	c, ok := t.m.comments[id]
	if !ok {
		return nil, engine.ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (t memTx) ChildCount(_ context.Context, id int64) (int, error) {
	n := 0
	for _, c := range t.m.comments {
		if c.Parent != nil && *c.Parent == id {
			n++
		}
	}
	return n, nil
}

func (t memTx) Tombstone(_ context.Context, id int64) error {
	c, ok := t.m.comments[id]
	if !ok {
		return engine.ErrNotFound
	}
	c.Mode = engine.ModeTombstone
	c.Text = ""
	c.Author = nil
	c.Email = nil
	c.Website = nil
	c.Likes = 0
	c.Dislikes = 0
	c.Voters = nil
	t.m.comments[id] = c
	return nil
}

func (t memTx) Remove(_ context.Context, id int64) error {
	delete(t.m.comments, id)
	return nil
}

func (t memTx) ThreadSize(_ context.Context, threadID int64) (int, error) {
	n := 0
	for _, c := range t.m.comments {
		if c.ThreadID == threadID {
			n++
		}
	}
	return n, nil
}

func (t memTx) RemoveThread(_ context.Context, threadID int64) error {
	if th, ok := t.m.threads[threadID]; ok {
		delete(t.m.byURI, th.URI)
		delete(t.m.threads, threadID)
	}
	return nil
}

func (t memTx) StalePending(_ context.Context, before time.Time) ([]int64, error) {
	var ids []int64
	for id, c := range t.m.comments {
		if c.Mode == engine.ModePending && c.Created.Before(before) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) Add(ctx context.Context, uri, title string, c engine.Comment) (engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tid, ok := m.byURI[uri]
	if !ok {
		m.nextThread++
		tid = m.nextThread
		m.threads[tid] = engine.Thread{ID: tid, URI: uri, Title: title}
		m.byURI[uri] = tid
	}

	parent, err := engine.ResolveParent(ctx, memTx{m}.CommentByID, tid, c.Parent)
	if err != nil {
		return engine.Comment{}, err
	}

	m.nextComment++
	c.ID = m.nextComment
	c.ThreadID = tid
	c.Parent = parent
	c.Created = time.Now().UTC()
	c.Modified = nil
	m.comments[c.ID] = c
	return c, nil
}

func (m *Memory) Get(_ context.Context, id int64) (engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return engine.Comment{}, engine.ErrNotFound
	}
	return c, nil
}

func (m *Memory) Update(_ context.Context, id int64, edit engine.Edit) (engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.Mode == engine.ModeTombstone {
		return engine.Comment{}, engine.ErrNotFound
	}
	c.Text = edit.Text
	if edit.Author != nil {
		c.Author = edit.Author
	}
	if edit.Website != nil {
		c.Website = edit.Website
	}
	now := time.Now().UTC()
	c.Modified = &now
	m.comments[id] = c
	return c, nil
}

func (m *Memory) Activate(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.Mode == engine.ModeTombstone {
		return false, engine.ErrNotFound
	}
	if c.Mode == engine.ModeApproved {
		return false, nil
	}
	c.Mode = engine.ModeApproved
	m.comments[id] = c
	return true, nil
}

func (m *Memory) Delete(ctx context.Context, id int64) (*engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return engine.Delete(ctx, memTx{m}, id)
}

func (m *Memory) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return engine.Purge(ctx, memTx{m}, olderThan, time.Now().UTC())
}

func (m *Memory) Vote(_ context.Context, id int64, upvote bool, fingerprint string) (engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok || c.Mode == engine.ModeTombstone {
		return engine.Comment{}, engine.ErrNotFound
	}
	if c.HasVoter(fingerprint) {
		return c, nil
	}
	c.Voters = append(append([]string(nil), c.Voters...), fingerprint)
	if upvote {
		c.Likes++
	} else {
		c.Dislikes++
	}
	m.comments[id] = c
	return c, nil
}

func (m *Memory) Unsubscribe(_ context.Context, id int64, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.comments[id]
	if !ok {
		return engine.ErrNotFound
	}
	for cid, other := range m.comments {
		if other.ThreadID == c.ThreadID && other.Email != nil && *other.Email == email {
			other.Notification = false
			m.comments[cid] = other
		}
	}
	return nil
}

func (m *Memory) Thread(_ context.Context, uri string) (engine.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tid, ok := m.byURI[uri]
	if !ok {
		return engine.Thread{}, engine.ErrNotFound
	}
	return m.threads[tid], nil
}

func (m *Memory) CountByURIs(_ context.Context, uris []string) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make([]int64, len(uris))
	for i, uri := range uris {
		tid, ok := m.byURI[uri]
		if !ok {
			continue
		}
		for _, c := range m.comments {
			if c.ThreadID == tid && c.Mode == engine.ModeApproved {
				counts[i]++
			}
		}
	}
	return counts, nil
}

func (m *Memory) Count(_ context.Context, uri string, parent *int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.visible(uri, parent)), nil
}

func (m *Memory) List(_ context.Context, uri string, parent *int64, limit int) ([]engine.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.visible(uri, parent)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Latest(_ context.Context, limit int) ([]engine.LatestComment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limit <= 0 {
		return nil, engine.Invalid("limit", "must be a positive integer")
	}

	var out []engine.LatestComment
	for _, c := range m.comments {
		if c.Mode != engine.ModeApproved {
			continue
		}
		out = append(out, engine.LatestComment{Comment: c, URI: m.threads[c.ThreadID].URI})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// visible collects approved and tombstoned comments of uri filtered by
// parent (nil selects roots). Callers must hold m.mu.
func (m *Memory) visible(uri string, parent *int64) []engine.Comment {
	tid, ok := m.byURI[uri]
	if !ok {
		return nil
	}
	var out []engine.Comment
	for _, c := range m.comments {
		if c.ThreadID != tid || !c.Visible() {
			continue
		}
		if parent == nil {
			if c.Parent != nil {
				continue
			}
		} else if c.Parent == nil || *c.Parent != *parent {
			continue
		}
		out = append(out, c)
	}
	return out
}
