package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/comment-engine/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS threads (
    id    BIGSERIAL PRIMARY KEY,
    uri   TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS comments (
    id           BIGSERIAL PRIMARY KEY,
    thread_id    BIGINT NOT NULL REFERENCES threads(id),
    parent       BIGINT,
    created      TIMESTAMPTZ NOT NULL DEFAULT now(),
    modified     TIMESTAMPTZ,
    mode         SMALLINT NOT NULL,
    remote_addr  TEXT NOT NULL DEFAULT '',
    text         TEXT NOT NULL DEFAULT '',
    author       TEXT,
    email        TEXT,
    website      TEXT,
    likes        INT NOT NULL DEFAULT 0,
    dislikes     INT NOT NULL DEFAULT 0,
    voters       JSONB NOT NULL DEFAULT '[]',
    notification BOOLEAN NOT NULL DEFAULT false
);

CREATE INDEX IF NOT EXISTS comments_thread_idx ON comments (thread_id);
CREATE INDEX IF NOT EXISTS comments_parent_idx ON comments (parent);
CREATE INDEX IF NOT EXISTS comments_pending_idx ON comments (created) WHERE mode = 2;
`

const commentCols = `id, thread_id, parent, created, modified, mode, remote_addr, text, author, email, website, likes, dislikes, voters, notification`

// Postgres persists comments in Postgres via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Init creates the schema. Safe to run on every start.
func (s *Postgres) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("%w: init schema: %v", engine.ErrStore, err)
	}
	return nil
}

// pgTx implements engine.Tx on one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) CommentByID(ctx context.Context, id int64) (*engine.Comment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+commentCols+` FROM comments WHERE id = $1`, id)
	c, err := scanComment(row)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t pgTx) ChildCount(ctx context.Context, id int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM comments WHERE parent = $1`, id).Scan(&n)
	return n, storeErr(err)
}

func (t pgTx) Tombstone(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `
UPDATE comments
SET mode = $2, text = '', author = NULL, email = NULL, website = NULL,
    likes = 0, dislikes = 0, voters = '[]', modified = now()
WHERE id = $1`, id, engine.ModeTombstone)
	return storeErr(err)
}

func (t pgTx) Remove(ctx context.Context, id int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	return storeErr(err)
}

func (t pgTx) ThreadSize(ctx context.Context, threadID int64) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT count(*) FROM comments WHERE thread_id = $1`, threadID).Scan(&n)
	return n, storeErr(err)
}

func (t pgTx) RemoveThread(ctx context.Context, threadID int64) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID)
	return storeErr(err)
}

func (t pgTx) StalePending(ctx context.Context, before time.Time) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT id FROM comments WHERE mode = $1 AND created < $2 ORDER BY id`,
		engine.ModePending, before)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr(err)
		}
		ids = append(ids, id)
	}
	return ids, storeErr(rows.Err())
}

func (s *Postgres) Add(ctx context.Context, uri, title string, c engine.Comment) (engine.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return engine.Comment{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var tid int64
	err = tx.QueryRow(ctx, `
INSERT INTO threads (uri, title) VALUES ($1, $2)
ON CONFLICT (uri) DO UPDATE SET uri = EXCLUDED.uri
RETURNING id`, uri, title).Scan(&tid)
	if err != nil {
		return engine.Comment{}, storeErr(err)
	}

	parent, err := engine.ResolveParent(ctx, pgTx{tx}.CommentByID, tid, c.Parent)
	if err != nil {
		return engine.Comment{}, err
	}

	voters, err := json.Marshal(voterList(c.Voters))
	if err != nil {
		return engine.Comment{}, storeErr(err)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO comments (thread_id, parent, mode, remote_addr, text, author, email, website, voters, notification)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+commentCols,
		tid, parent, c.Mode, c.RemoteAddr, c.Text, c.Author, c.Email, c.Website, voters, c.Notification)
	out, err := scanComment(row)
	if err != nil {
		return engine.Comment{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return engine.Comment{}, storeErr(err)
	}
	return out, nil
}

func (s *Postgres) Get(ctx context.Context, id int64) (engine.Comment, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+commentCols+` FROM comments WHERE id = $1`, id)
	return scanComment(row)
}

func (s *Postgres) Update(ctx context.Context, id int64, edit engine.Edit) (engine.Comment, error) {
	row := s.pool.QueryRow(ctx, `
UPDATE comments
SET text = $2, author = COALESCE($3, author), website = COALESCE($4, website), modified = now()
WHERE id = $1 AND mode IN ($5, $6)
RETURNING `+commentCols,
		id, edit.Text, edit.Author, edit.Website, engine.ModeApproved, engine.ModePending)
	return scanComment(row)
}

func (s *Postgres) Activate(ctx context.Context, id int64) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var mode engine.Mode
	err = tx.QueryRow(ctx, `SELECT mode FROM comments WHERE id = $1 FOR UPDATE`, id).Scan(&mode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, engine.ErrNotFound
		}
		return false, storeErr(err)
	}
	switch mode {
	case engine.ModeApproved:
		return false, tx.Commit(ctx)
	case engine.ModePending:
		if _, err := tx.Exec(ctx, `UPDATE comments SET mode = $2 WHERE id = $1`,
			id, engine.ModeApproved); err != nil {
			return false, storeErr(err)
		}
		return true, storeErr(tx.Commit(ctx))
	default:
		return false, engine.ErrNotFound
	}
}

func (s *Postgres) Delete(ctx context.Context, id int64) (*engine.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	out, err := engine.Delete(ctx, pgTx{tx}, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

func (s *Postgres) Purge(ctx context.Context, olderThan time.Duration) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	n, err := engine.Purge(ctx, pgTx{tx}, olderThan, time.Now().UTC())
	if err != nil {
		return n, err
	}
	return n, storeErr(tx.Commit(ctx))
}

func (s *Postgres) Vote(ctx context.Context, id int64, upvote bool, fingerprint string) (engine.Comment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return engine.Comment{}, storeErr(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+commentCols+` FROM comments WHERE id = $1 FOR UPDATE`, id)
	c, err := scanComment(row)
	if err != nil {
		return engine.Comment{}, err
	}
	if c.Mode == engine.ModeTombstone {
		return engine.Comment{}, engine.ErrNotFound
	}
	if c.HasVoter(fingerprint) {
		return c, tx.Commit(ctx)
	}

	c.Voters = append(c.Voters, fingerprint)
	if upvote {
		c.Likes++
	} else {
		c.Dislikes++
	}
	voters, err := json.Marshal(c.Voters)
	if err != nil {
		return engine.Comment{}, storeErr(err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE comments SET likes = $2, dislikes = $3, voters = $4 WHERE id = $1`,
		id, c.Likes, c.Dislikes, voters); err != nil {
		return engine.Comment{}, storeErr(err)
	}
	return c, storeErr(tx.Commit(ctx))
}

func (s *Postgres) Unsubscribe(ctx context.Context, id int64, email string) error {
	_, err := s.pool.Exec(ctx, `
UPDATE comments SET notification = false
WHERE email = $2
  AND thread_id = (SELECT thread_id FROM comments WHERE id = $1)`, id, email)
	return storeErr(err)
}

func (s *Postgres) Thread(ctx context.Context, uri string) (engine.Thread, error) {
	var t engine.Thread
	err := s.pool.QueryRow(ctx,
		`SELECT id, uri, title FROM threads WHERE uri = $1`, uri).
		Scan(&t.ID, &t.URI, &t.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Thread{}, engine.ErrNotFound
		}
		return engine.Thread{}, storeErr(err)
	}
	return t, nil
}

func (s *Postgres) CountByURIs(ctx context.Context, uris []string) ([]int64, error) {
	counts := make([]int64, len(uris))
	if len(uris) == 0 {
		return counts, nil
	}
	rows, err := s.pool.Query(ctx, `
SELECT threads.uri, count(*)
FROM comments
JOIN threads ON threads.id = comments.thread_id
WHERE threads.uri = ANY($1) AND comments.mode = $2
GROUP BY threads.uri`, uris, engine.ModeApproved)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	byURI := make(map[string]int64)
	for rows.Next() {
		var uri string
		var n int64
		if err := rows.Scan(&uri, &n); err != nil {
			return nil, storeErr(err)
		}
		byURI[uri] = n
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	for i, uri := range uris {
		counts[i] = byURI[uri]
	}
	return counts, nil
}

func (s *Postgres) Count(ctx context.Context, uri string, parent *int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
SELECT count(*)
FROM comments
JOIN threads ON threads.id = comments.thread_id
WHERE threads.uri = $1 AND comments.mode IN ($2, $3)
  AND comments.parent IS NOT DISTINCT FROM $4`,
		uri, engine.ModeApproved, engine.ModeTombstone, parent).Scan(&n)
	return n, storeErr(err)
}

func (s *Postgres) List(ctx context.Context, uri string, parent *int64, limit int) ([]engine.Comment, error) {
	q := `
SELECT ` + prefixedCommentCols("comments.") + `
FROM comments
JOIN threads ON threads.id = comments.thread_id
WHERE threads.uri = $1 AND comments.mode IN ($2, $3)
  AND comments.parent IS NOT DISTINCT FROM $4
ORDER BY comments.created, comments.id`
	args := []any{uri, engine.ModeApproved, engine.ModeTombstone, parent}
	if limit > 0 {
		q += ` LIMIT $5`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []engine.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, storeErr(rows.Err())
}

func (s *Postgres) Latest(ctx context.Context, limit int) ([]engine.LatestComment, error) {
	if limit <= 0 {
		return nil, engine.Invalid("limit", "must be a positive integer")
	}
	rows, err := s.pool.Query(ctx, `
SELECT `+prefixedCommentCols("comments.")+`, threads.uri
FROM comments
JOIN threads ON threads.id = comments.thread_id
WHERE comments.mode = $1
ORDER BY comments.created DESC, comments.id DESC
LIMIT $2`, engine.ModeApproved, limit)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	var out []engine.LatestComment
	for rows.Next() {
		var (
			c      engine.Comment
			voters []byte
			uri    string
		)
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.Parent, &c.Created, &c.Modified, &c.Mode,
			&c.RemoteAddr, &c.Text, &c.Author, &c.Email, &c.Website,
			&c.Likes, &c.Dislikes, &voters, &c.Notification, &uri); err != nil {
			return nil, storeErr(err)
		}
		_ = json.Unmarshal(voters, &c.Voters)
		out = append(out, engine.LatestComment{Comment: c, URI: uri})
	}
	return out, storeErr(rows.Err())
}

func scanComment(row pgx.Row) (engine.Comment, error) {
	var (
		c      engine.Comment
		voters []byte
	)
	err := row.Scan(&c.ID, &c.ThreadID, &c.Parent, &c.Created, &c.Modified, &c.Mode,
		&c.RemoteAddr, &c.Text, &c.Author, &c.Email, &c.Website,
		&c.Likes, &c.Dislikes, &voters, &c.Notification)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return engine.Comment{}, engine.ErrNotFound
		}
		return engine.Comment{}, storeErr(err)
	}
	_ = json.Unmarshal(voters, &c.Voters)
	return c, nil
}

func prefixedCommentCols(prefix string) string {
	return prefix + "id, " + prefix + "thread_id, " + prefix + "parent, " +
		prefix + "created, " + prefix + "modified, " + prefix + "mode, " +
		prefix + "remote_addr, " + prefix + "text, " + prefix + "author, " +
		prefix + "email, " + prefix + "website, " + prefix + "likes, " +
		prefix + "dislikes, " + prefix + "voters, " + prefix + "notification"
}

// voterList keeps the JSONB column a list even when no voter is seeded.
func voterList(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func storeErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", engine.ErrStore, err)
}
