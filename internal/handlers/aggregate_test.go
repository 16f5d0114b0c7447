package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestCountMany(t *testing.T) {
	_, h := newTestAPI(Options{})
	createComment(t, h, "%2Fa%2F", `{"text":"one"}`)
	createComment(t, h, "%2Fa%2F", `{"text":"two"}`)
	createComment(t, h, "%2Fb%2F", `{"text":"three"}`)

	rr := doJSON(h, http.MethodPost, "/count", `["/a/","/missing/","/b/"]`, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var counts []int64
	if err := json.NewDecoder(rr.Body).Decode(&counts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []int64{2, 0, 1}
	if len(counts) != len(want) {
		t.Fatalf("expected %d counts, got %d", len(want), len(counts))
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("position %d: expected %d, got %d", i, want[i], counts[i])
		}
	}
}

func TestCountManyBadBody(t *testing.T) {
	_, h := newTestAPI(Options{})
	rr := doJSON(h, http.MethodPost, "/count", `{"uri":"/a/"}`, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-array body, got %d", rr.Code)
	}
}

func TestLatestDisabled(t *testing.T) {
	_, h := newTestAPI(Options{})
	rr := doJSON(h, http.MethodGet, "/latest?limit=5", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 while disabled, got %d", rr.Code)
	}
}

func TestLatestLimitValidation(t *testing.T) {
	_, h := newTestAPI(Options{LatestEnabled: true})
	for _, url := range []string{"/latest", "/latest?limit=", "/latest?limit=abc", "/latest?limit=0", "/latest?limit=-3"} {
		rr := doJSON(h, http.MethodGet, url, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", url, rr.Code)
		}
	}
}

func TestLatest(t *testing.T) {
	_, h := newTestAPI(Options{LatestEnabled: true})
	createComment(t, h, "%2Fa%2F", `{"text":"older"}`)
	createComment(t, h, "%2Fb%2F", `{"text":"newer"}`)

	rr := doJSON(h, http.MethodGet, "/latest?limit=5", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var views []commentView
	if err := json.NewDecoder(rr.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(views))
	}
	if views[0].ID != 2 || views[0].URI != "/b/" {
		t.Fatalf("expected the newest first with its uri, got %+v", views[0])
	}
	if views[1].URI != "/a/" {
		t.Fatalf("expected thread uri attached, got %+v", views[1])
	}

	rr = doJSON(h, http.MethodGet, "/latest?limit=1", "", nil)
	views = nil
	if err := json.NewDecoder(rr.Body).Decode(&views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].ID != 2 {
		t.Fatalf("expected only the newest, got %+v", views)
	}
}
