package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/example/comment-engine/internal/engine"
	"github.com/example/comment-engine/internal/platform/api"
	"github.com/example/comment-engine/internal/platform/httpserver"
)

// CountMany handles POST /count: a JSON array of URIs in, the positional
// approved-comment counts out. Unknown URIs count zero.
func (a *API) CountMany(w http.ResponseWriter, r *http.Request) {
	var uris []string
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&uris); err != nil {
		a.writeErr(w, r, engine.Invalid("body", "is not a JSON array of uris"))
		return
	}
	counts, err := a.Store.CountByURIs(r.Context(), uris)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, counts)
}

// Latest handles GET /latest?limit=: the newest approved comments across
// all threads. limit is mandatory and must be positive; the endpoint
// itself can be disabled by configuration.
func (a *API) Latest(w http.ResponseWriter, r *http.Request) {
	if !a.Opts.LatestEnabled {
		api.NotFound(w, "NOT_FOUND", "latest is not enabled",
			httpserver.RequestIDFromContext(r.Context()))
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	limit, err := strconv.Atoi(raw)
	if raw == "" || err != nil || limit <= 0 {
		a.writeErr(w, r, engine.Invalid("limit", "must be a positive integer"))
		return
	}

	items, err := a.Store.Latest(r.Context(), limit)
	if err != nil {
		a.writeErr(w, r, err)
		return
	}

	views := make([]commentView, 0, len(items))
	for _, it := range items {
		v := a.view(it.Comment, false)
		v.URI = it.URI
		views = append(views, v)
	}
	api.WriteJSON(w, http.StatusOK, views)
}
