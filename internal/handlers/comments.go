package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/comment-engine/internal/engine"
	"github.com/example/comment-engine/internal/events"
	"github.com/example/comment-engine/internal/markdown"
	"github.com/example/comment-engine/internal/platform/api"
)

type createRequest struct {
	Text         string  `json:"text"`
	Parent       *int64  `json:"parent"`
	Author       *string `json:"author"`
	Email        *string `json:"email"`
	Website      *string `json:"website"`
	Title        *string `json:"title"`
	Notification bool    `json:"notification"`
}

type editRequest struct {
	Text    string  `json:"text"`
	Author  *string `json:"author"`
	Website *string `json:"website"`
}

type fetchResponse struct {
	ID            *int64        `json:"id"`
	TotalReplies  int           `json:"total_replies"`
	Replies       []commentView `json:"replies"`
	HiddenReplies int           `json:"hidden_replies"`
}

// Create handles POST /new?uri=
func (a *API) Create(w http.ResponseWriter, r *http.Request) {
	uri := strings.TrimSpace(r.URL.Query().Get("uri"))
	if uri == "" {
		a.writeErr(w, r, engine.Invalid("uri", "is required"))
		return
	}

	var req createRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.writeErr(w, r, engine.Invalid("body", "is not valid JSON"))
		return
	}

	nc := engine.NewComment{
		Text:         req.Text,
		Parent:       req.Parent,
		Author:       req.Author,
		Email:        req.Email,
		Website:      req.Website,
		Title:        req.Title,
		Notification: req.Notification,
	}
	if err := nc.Validate(); err != nil {
		a.writeErr(w, r, err)
		return
	}

	title := "Untitled."
	if nc.Title != nil && strings.TrimSpace(*nc.Title) != "" {
		title = strings.TrimSpace(*nc.Title)
	}

	addr := remoteAddr(r)
	created, err := a.Store.Add(r.Context(), uri, title, engine.Comment{
		Parent:     nc.Parent,
		Mode:       engine.EntryMode(a.Opts.Moderated),
		RemoteAddr: addr,
		Text:       nc.Text,
		Author:     nc.Author,
		Email:      nc.Email,
		Website:    nc.Website,
		// The creator is pre-seeded as a voter so self-votes never count.
		Voters:       []string{a.Hasher.Fingerprint(addr, nil)},
		Notification: nc.Notification,
	})
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	a.setOwnershipCookie(w, r, created.ID)
	a.publishCreated(created, uri)

	status := http.StatusCreated
	if created.Mode == engine.ModePending {
		status = http.StatusAccepted
	}
	api.WriteJSON(w, status, a.view(created, false))
}

func (a *API) publishCreated(c engine.Comment, uri string) {
	subject, name := events.SubjectCommentCreated, "comment_created"
	props := map[string]any{"mode": int(c.Mode)}
	if c.Mode == engine.ModePending {
		subject, name = events.SubjectCommentPending, "comment_pending"
		// One key per action link in the moderation mail.
		for _, action := range []string{"activate", "edit", "delete"} {
			if key, err := a.Tokens.SignModeration(action, c.ID, 0); err == nil {
				props[action+"_key"] = key
			}
		}
	}
	if c.Email != nil && c.Notification {
		if key, err := a.Tokens.SignUnsubscribe(*c.Email, 0); err == nil {
			props["unsubscribe_key"] = key
		}
	}
	a.Events.Publish(subject, name, c.ID, uri, props)
}

// Fetch handles GET /?uri=&parent=&limit=&nested_limit=&plain=
func (a *API) Fetch(w http.ResponseWriter, r *http.Request) {
	uri := strings.TrimSpace(r.URL.Query().Get("uri"))
	if uri == "" {
		a.writeErr(w, r, engine.Invalid("uri", "is required"))
		return
	}
	parent, err := optionalInt64(r, "parent")
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	limit, err := optionalInt(r, "limit")
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	nested, err := optionalInt(r, "nested_limit")
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	plain := r.URL.Query().Get("plain") == "1"

	ctx := r.Context()
	if _, err := a.Store.Thread(ctx, uri); err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			// Unknown pages are empty, not errors.
			api.WriteJSON(w, http.StatusOK, fetchResponse{ID: parent, Replies: []commentView{}})
			return
		}
		a.writeErr(w, r, err)
		return
	}

	total, err := a.Store.Count(ctx, uri, parent)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	list, err := a.Store.List(ctx, uri, parent, limit)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	replies := make([]commentView, 0, len(list))
	for _, c := range list {
		v := a.view(c, plain)
		if parent == nil {
			if v.Replies, v.TotalReplies, v.HiddenReplies, err = a.childViews(r, uri, c.ID, nested, plain); err != nil {
				a.writeErr(w, r, err)
				return
			}
		}
		replies = append(replies, v)
	}

	api.WriteJSON(w, http.StatusOK, fetchResponse{
		ID:            parent,
		TotalReplies:  total,
		Replies:       replies,
		HiddenReplies: total - len(replies),
	})
}

func (a *API) childViews(r *http.Request, uri string, parent int64, limit int, plain bool) ([]commentView, *int, *int, error) {
	ctx := r.Context()
	total, err := a.Store.Count(ctx, uri, &parent)
	if err != nil {
		return nil, nil, nil, err
	}
	kids, err := a.Store.List(ctx, uri, &parent, limit)
	if err != nil {
		return nil, nil, nil, err
	}
	views := make([]commentView, 0, len(kids))
	for _, k := range kids {
		views = append(views, a.view(k, plain))
	}
	hidden := total - len(views)
	return views, &total, &hidden, nil
}

// View handles GET /id/{id}. The row is only shown to its owner: the
// per-comment cookie must verify and the ownership window must be open.
func (a *API) View(w http.ResponseWriter, r *http.Request) {
	c, err := a.Store.Get(r.Context(), pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := a.authorizeOwner(r, c); err != nil {
		a.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, a.view(c, r.URL.Query().Get("plain") == "1"))
}

// Edit handles PUT /id/{id} (cookie-gated client edit).
func (a *API) Edit(w http.ResponseWriter, r *http.Request) {
	c, err := a.Store.Get(r.Context(), pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := a.authorizeOwner(r, c); err != nil {
		a.writeErr(w, r, err)
		return
	}

	updated, err := a.applyEdit(w, r, c.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	// Editing extends the window the same way creation opened it.
	a.setOwnershipCookie(w, r, c.ID)
	api.WriteJSON(w, http.StatusOK, a.view(updated, false))
}

func (a *API) applyEdit(w http.ResponseWriter, r *http.Request, id int64) (engine.Comment, error) {
	var req editRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return engine.Comment{}, engine.Invalid("body", "is not valid JSON")
	}
	ed := engine.Edit{Text: req.Text, Author: req.Author, Website: req.Website}
	if err := ed.Validate(); err != nil {
		return engine.Comment{}, err
	}
	return a.Store.Update(r.Context(), id, ed)
}

// Delete handles DELETE /id/{id} (cookie-gated client delete). The body
// is the tombstone when children keep the row alive, JSON null otherwise.
func (a *API) Delete(w http.ResponseWriter, r *http.Request) {
	c, err := a.Store.Get(r.Context(), pathID(r))
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := a.authorizeOwner(r, c); err != nil {
		a.writeErr(w, r, err)
		return
	}

	ts, err := a.Store.Delete(r.Context(), c.ID)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	a.clearOwnershipCookie(w, r, c.ID)
	a.Events.Publish(events.SubjectCommentDeleted, "comment_deleted", c.ID, "", map[string]any{
		"tombstone": ts != nil,
	})
	if ts == nil {
		api.WriteJSON(w, http.StatusOK, nil)
		return
	}
	api.WriteJSON(w, http.StatusOK, a.view(*ts, false))
}

// Like handles POST /id/{id}/like.
func (a *API) Like(w http.ResponseWriter, r *http.Request) {
	a.vote(w, r, true)
}

// Dislike handles POST /id/{id}/dislike.
func (a *API) Dislike(w http.ResponseWriter, r *http.Request) {
	a.vote(w, r, false)
}

func (a *API) vote(w http.ResponseWriter, r *http.Request, up bool) {
	fp := a.Hasher.Fingerprint(remoteAddr(r), nil)
	c, err := a.Store.Vote(r.Context(), pathID(r), up, fp)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]int{"likes": c.Likes, "dislikes": c.Dislikes})
}

// Preview handles POST /preview: render without persisting.
func (a *API) Preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		a.writeErr(w, r, engine.Invalid("body", "is not valid JSON"))
		return
	}
	if err := engine.ValidateText(req.Text); err != nil {
		a.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"text": markdown.Render(req.Text)})
}

func optionalInt64(r *http.Request, key string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, engine.Invalid(key, "must be an integer")
	}
	return &n, nil
}

func optionalInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, engine.Invalid(key, "must be a non-negative integer")
	}
	return n, nil
}
