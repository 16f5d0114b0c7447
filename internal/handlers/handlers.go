// Package handlers exposes the comment engine over HTTP. Handlers decode
// and validate input, delegate to the store, and map typed engine
// failures to status codes; they hold no state of their own.
package handlers

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/comment-engine/internal/engine"
	"github.com/example/comment-engine/internal/events"
	"github.com/example/comment-engine/internal/identity"
	"github.com/example/comment-engine/internal/markdown"
	"github.com/example/comment-engine/internal/platform/api"
	"github.com/example/comment-engine/internal/platform/httpserver"
	"github.com/example/comment-engine/internal/store"
	"github.com/example/comment-engine/internal/tokens"
)

const maxBodyBytes = 1 << 20

type Options struct {
	// Moderated routes new comments through the pending state.
	Moderated bool
	// OwnershipWindow is how long after creation the creating client may
	// edit or delete with its cookie alone.
	OwnershipWindow time.Duration
	LatestEnabled   bool
}

type API struct {
	Store  store.Store
	Tokens tokens.Service
	Hasher *identity.Hasher
	Events *events.Publisher
	Log    *zap.Logger
	Opts   Options
}

// Routes mounts every comment endpoint on r.
func (a *API) Routes(r chi.Router) {
	r.Post("/new", a.Create)
	r.Get("/", a.Fetch)
	r.Post("/count", a.CountMany)
	r.Get("/latest", a.Latest)
	r.Post("/preview", a.Preview)

	r.Route("/id/{id:[0-9]+}", func(r chi.Router) {
		r.Get("/", a.View)
		r.Put("/", a.Edit)
		r.Delete("/", a.Delete)
		r.Post("/like", a.Like)
		r.Post("/dislike", a.Dislike)
		r.Get("/unsubscribe/{email}/{key}", a.Unsubscribe)
		r.Get("/{action:activate|edit|delete}/{key}", a.ModerateConfirm)
		r.Post("/{action:activate|edit|delete}/{key}", a.Moderate)
	})
}

// commentView is the public JSON shape of a comment. Email and the raw
// remote address never appear here.
type commentView struct {
	ID            int64         `json:"id"`
	Parent        *int64        `json:"parent"`
	Created       time.Time     `json:"created"`
	Modified      *time.Time    `json:"modified,omitempty"`
	Mode          int           `json:"mode"`
	Text          string        `json:"text"`
	Author        *string       `json:"author"`
	Website       *string       `json:"website,omitempty"`
	Hash          string        `json:"hash"`
	Likes         int           `json:"likes"`
	Dislikes      int           `json:"dislikes"`
	URI           string        `json:"uri,omitempty"`
	TotalReplies  *int          `json:"total_replies,omitempty"`
	HiddenReplies *int          `json:"hidden_replies,omitempty"`
	Replies       []commentView `json:"replies,omitempty"`
}

func (a *API) view(c engine.Comment, plain bool) commentView {
	text := c.Text
	if c.Mode == engine.ModeTombstone {
		text = ""
	} else if !plain {
		text = markdown.Render(c.Text)
	}
	return commentView{
		ID:       c.ID,
		Parent:   c.Parent,
		Created:  c.Created,
		Modified: c.Modified,
		Mode:     int(c.Mode),
		Text:     text,
		Author:   c.Author,
		Website:  c.Website,
		Hash:     a.Hasher.Fingerprint(c.RemoteAddr, c.Email),
		Likes:    c.Likes,
		Dislikes: c.Dislikes,
	}
}

func (a *API) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, engine.ErrValidation):
		api.BadRequest(w, "VALIDATION", err.Error(), rid, nil)
	case errors.Is(err, engine.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "comment or thread not found", rid)
	case errors.Is(err, engine.ErrForbidden), errors.Is(err, tokens.ErrInvalidToken):
		api.Forbidden(w, "FORBIDDEN", "not allowed", rid)
	case errors.Is(err, engine.ErrConflict):
		api.Conflict(w, "CONFLICT", err.Error(), rid, nil)
	default:
		a.Log.Error("request failed", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

// remoteAddr extracts the client address, honoring the first
// X-Forwarded-For hop when a proxy sits in front.
func remoteAddr(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

func cookieName(id int64) string {
	return fmt.Sprintf("comment-%d", id)
}

func (a *API) setOwnershipCookie(w http.ResponseWriter, r *http.Request, id int64) {
	tok, err := a.Tokens.SignOwnership(id, a.Opts.OwnershipWindow)
	if err != nil {
		a.Log.Warn("sign ownership cookie", zap.Int64("comment_id", id), zap.Error(err))
		return
	}
	a.writeCookie(w, r, &http.Cookie{
		Name:     cookieName(id),
		Value:    tok,
		Path:     "/",
		MaxAge:   int(a.Opts.OwnershipWindow.Seconds()),
		HttpOnly: true,
	})
}

func (a *API) clearOwnershipCookie(w http.ResponseWriter, r *http.Request, id int64) {
	a.writeCookie(w, r, &http.Cookie{
		Name:     cookieName(id),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// writeCookie sets Secure/SameSite from the request scheme and mirrors
// the cookie into X-Set-Cookie for proxies that strip Set-Cookie.
func (a *API) writeCookie(w http.ResponseWriter, r *http.Request, ck *http.Cookie) {
	if isSecure(r) {
		ck.Secure = true
		ck.SameSite = http.SameSiteNoneMode
	} else {
		ck.SameSite = http.SameSiteLaxMode
	}
	http.SetCookie(w, ck)
	w.Header().Set("X-Set-Cookie", ck.String())
}

// authorizeOwner checks the per-comment ownership cookie and the
// configured ownership window measured from creation. Outside the window
// only the moderation-token path is accepted.
func (a *API) authorizeOwner(r *http.Request, c engine.Comment) error {
	ck, err := r.Cookie(cookieName(c.ID))
	if err != nil {
		return engine.ErrForbidden
	}
	if err := a.Tokens.VerifyOwnership(ck.Value, c.ID); err != nil {
		return engine.ErrForbidden
	}
	if a.Opts.OwnershipWindow > 0 && time.Since(c.Created) > a.Opts.OwnershipWindow {
		return engine.ErrForbidden
	}
	return nil
}
