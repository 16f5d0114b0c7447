package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
)

func TestModerateActivate(t *testing.T) {
	a, h := newTestAPI(Options{Moderated: true})
	createComment(t, h, "%2Fpath%2F", `{"text":"unreviewed"}`)

	key, err := a.Tokens.SignModeration("activate", 1, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rr := doJSON(h, http.MethodPost, "/id/1/activate/"+key, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "Comment has been activated" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}

	// Activation is idempotent in effect but says so.
	rr = doJSON(h, http.MethodPost, "/id/1/activate/"+key, "", nil)
	if rr.Body.String() != "Already activated" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}

	// The comment now shows up publicly.
	rr = doJSON(h, http.MethodGet, "/?uri=%2Fpath%2F", "", nil)
	var resp fetchResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Replies) != 1 {
		t.Fatalf("activated comment missing from fetch: %+v", resp)
	}
}

func TestModerateConfirmPage(t *testing.T) {
	a, h := newTestAPI(Options{Moderated: true})
	createComment(t, h, "%2Fpath%2F", `{"text":"unreviewed"}`)

	key, _ := a.Tokens.SignModeration("activate", 1, 0)
	rr := doJSON(h, http.MethodGet, "/id/1/activate/"+key, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.HasPrefix(body, "Activate: Are you sure?") {
		t.Fatalf("unexpected confirmation page %q", body)
	}
	if !strings.Contains(body, "unreviewed") {
		t.Fatalf("expected comment text on confirmation page, got %q", body)
	}
}

func TestModerateEdit(t *testing.T) {
	a, h := newTestAPI(Options{})
	createComment(t, h, "%2Fpath%2F", `{"text":"original"}`)

	key, _ := a.Tokens.SignModeration("edit", 1, 0)
	rr := doJSON(h, http.MethodPost, "/id/1/edit/"+key, `{"text":"moderated"}`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var v commentView
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.Text != "<p>moderated</p>" {
		t.Fatalf("expected moderated text, got %q", v.Text)
	}
}

func TestModerateDelete(t *testing.T) {
	a, h := newTestAPI(Options{})
	createComment(t, h, "%2Fpath%2F", `{"text":"doomed"}`)

	key, _ := a.Tokens.SignModeration("delete", 1, 0)
	rr := doJSON(h, http.MethodPost, "/id/1/delete/"+key, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "Comment has been deleted" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestModerateRejectsBadKey(t *testing.T) {
	a, h := newTestAPI(Options{Moderated: true})
	createComment(t, h, "%2Fpath%2F", `{"text":"unreviewed"}`)

	// An ownership token is not a moderation key, id match or not.
	own, _ := a.Tokens.SignOwnership(1, 0)
	rr := doJSON(h, http.MethodPost, "/id/1/activate/"+own, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for ownership token, got %d", rr.Code)
	}

	// A key for another comment does not transfer.
	other, _ := a.Tokens.SignModeration("activate", 2, 0)
	rr = doJSON(h, http.MethodPost, "/id/1/activate/"+other, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for mismatched key, got %d", rr.Code)
	}

	// A delete key does not activate.
	del, _ := a.Tokens.SignModeration("delete", 1, 0)
	rr = doJSON(h, http.MethodPost, "/id/1/activate/"+del, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for cross-action key, got %d", rr.Code)
	}
}

func TestUnsubscribe(t *testing.T) {
	a, h := newTestAPI(Options{})
	createComment(t, h, "%2Fpath%2F", `{"text":"hello","email":"user@example.tld","notification":true}`)

	key, err := a.Tokens.SignUnsubscribe("user@example.tld", 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rr := doJSON(h, http.MethodGet, "/id/1/unsubscribe/user@example.tld/"+key, "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Body.String() != "Successfully unsubscribed" {
		t.Fatalf("unexpected body %q", rr.Body.String())
	}
}

func TestUnsubscribeRejectsForeignKey(t *testing.T) {
	a, h := newTestAPI(Options{})
	createComment(t, h, "%2Fpath%2F", `{"text":"hello","email":"user@example.tld","notification":true}`)

	// A key minted for another address never matches.
	key, _ := a.Tokens.SignUnsubscribe("other@example.tld", 0)
	rr := doJSON(h, http.MethodGet, "/id/1/unsubscribe/user@example.tld/"+key, "", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}
