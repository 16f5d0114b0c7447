package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/comment-engine/internal/platform/api"
)

// ModerateConfirm handles GET /id/{id}/{action}/{key}: the confirmation
// page a moderator lands on from an action link.
func (a *API) ModerateConfirm(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	action := chi.URLParam(r, "action")
	if err := a.Tokens.VerifyModeration(chi.URLParam(r, "key"), action, id); err != nil {
		a.writeErr(w, r, err)
		return
	}
	c, err := a.Store.Get(r.Context(), id)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	api.WriteText(w, http.StatusOK, fmt.Sprintf("%s: Are you sure?\n\nComment #%d:\n%s\n",
		capitalize(action), c.ID, c.Text))
}

// Moderate handles POST /id/{id}/{action}/{key}: the token-gated
// moderator path for activate, edit and delete.
func (a *API) Moderate(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	action := chi.URLParam(r, "action")
	if err := a.Tokens.VerifyModeration(chi.URLParam(r, "key"), action, id); err != nil {
		a.writeErr(w, r, err)
		return
	}

	switch action {
	case "activate":
		changed, err := a.Store.Activate(r.Context(), id)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		if !changed {
			api.WriteText(w, http.StatusOK, "Already activated")
			return
		}
		api.WriteText(w, http.StatusOK, "Comment has been activated")

	case "edit":
		updated, err := a.applyEdit(w, r, id)
		if err != nil {
			a.writeErr(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, a.view(updated, false))

	case "delete":
		if _, err := a.Store.Delete(r.Context(), id); err != nil {
			a.writeErr(w, r, err)
			return
		}
		api.WriteText(w, http.StatusOK, "Comment has been deleted")
	}
}

// Unsubscribe handles GET /id/{id}/unsubscribe/{email}/{key}: flips off
// notifications for every comment by email in the comment's thread.
func (a *API) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)
	email := chi.URLParam(r, "email")
	if err := a.Tokens.VerifyUnsubscribe(chi.URLParam(r, "key"), email); err != nil {
		a.writeErr(w, r, err)
		return
	}
	if err := a.Store.Unsubscribe(r.Context(), id, email); err != nil {
		a.writeErr(w, r, err)
		return
	}
	api.WriteText(w, http.StatusOK, "Successfully unsubscribed")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
