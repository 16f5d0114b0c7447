package tokens

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newService() Service {
	return Service{Secret: []byte("test-secret")}
}

func TestOwnershipRoundTrip(t *testing.T) {
	s := newService()
	tok, err := s.SignOwnership(42, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.VerifyOwnership(tok, 42); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.VerifyOwnership(tok, 43); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for other comment, got %v", err)
	}
}

func TestModerationRoundTrip(t *testing.T) {
	s := newService()
	tok, err := s.SignModeration("activate", 7, 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.VerifyModeration(tok, "activate", 7); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.VerifyModeration(tok, "delete", 7); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for other action, got %v", err)
	}
	if err := s.VerifyModeration(tok, "activate", 8); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for other comment, got %v", err)
	}
}

func TestUnsubscribeRoundTrip(t *testing.T) {
	s := newService()
	tok, err := s.SignUnsubscribe("user@example.tld", 0)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.VerifyUnsubscribe(tok, "user@example.tld"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := s.VerifyUnsubscribe(tok, "other@example.tld"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for other email, got %v", err)
	}
}

func TestCrossUseRejection(t *testing.T) {
	// A token minted for one purpose never verifies for another, even
	// with a matching payload.
	s := newService()

	own, _ := s.SignOwnership(5, time.Minute)
	if err := s.VerifyModeration(own, "activate", 5); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ownership token accepted for moderation: %v", err)
	}

	mod, _ := s.SignModeration("activate", 5, 0)
	if err := s.VerifyOwnership(mod, 5); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("moderation token accepted for ownership: %v", err)
	}

	unsub, _ := s.SignUnsubscribe("user@example.tld", 0)
	if err := s.VerifyModeration(unsub, "activate", 5); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("unsubscribe token accepted for moderation: %v", err)
	}
}

func TestMissingPayloadElement(t *testing.T) {
	// An unsubscribe token states an email, never a comment id. Handing
	// it to a verifier that needs the id must fail even though the use
	// check alone would not catch it.
	s := newService()
	tok, _ := s.sign(claims{Use: useOwnership}, time.Minute)
	if err := s.VerifyOwnership(tok, 1); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for missing comment id, got %v", err)
	}

	tok, _ = s.sign(claims{Use: useUnsubscribe}, 0)
	if err := s.VerifyUnsubscribe(tok, "user@example.tld"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for missing email, got %v", err)
	}
}

func TestTamperedToken(t *testing.T) {
	s := newService()
	tok, _ := s.SignOwnership(1, time.Minute)

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", tok)
	}
	tampered := parts[0] + "." + parts[1] + "." + strings.Repeat("x", len(parts[2]))
	if err := s.VerifyOwnership(tampered, 1); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for tampered signature, got %v", err)
	}

	other := Service{Secret: []byte("other-secret")}
	if err := other.VerifyOwnership(tok, 1); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection under other secret, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	s := newService()
	tok, err := s.SignOwnership(1, -time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := s.VerifyOwnership(tok, 1); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected rejection for expired token, got %v", err)
	}
}

func TestGarbageToken(t *testing.T) {
	s := newService()
	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		if err := s.VerifyOwnership(raw, 1); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("raw %q: expected ErrInvalidToken, got %v", raw, err)
		}
	}
}
