// Package tokens signs and verifies the opaque credentials the comment
// engine hands out: per-comment ownership cookies, moderation action
// links, and unsubscribe links. Every token embeds a use discriminator,
// so a token minted for one purpose never verifies for another, and
// verification fails closed on any shape mismatch.
package tokens

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// Use discriminators embedded in the signed payload.
const (
	useOwnership   = "own"
	useModeration  = "mod"
	useUnsubscribe = "unsubscribe"
)

// ErrInvalidToken covers every rejection: bad signature, wrong
// discriminator, missing payload elements, or an elapsed expiry. Callers
// get no finer detail than that.
var ErrInvalidToken = errors.New("invalid token")

type Service struct {
	Secret []byte
}

type claims struct {
	Use     string  `json:"use"`
	Action  *string `json:"act,omitempty"`
	Comment *int64  `json:"cid,omitempty"`
	Email   *string `json:"eml,omitempty"`
	jwt.RegisteredClaims
}

func (s Service) sign(c claims, ttl time.Duration) (string, error) {
	if len(s.Secret) == 0 {
		return "", errors.New("missing token secret")
	}
	now := time.Now().UTC()
	c.IssuedAt = jwt.NewNumericDate(now)
	if ttl != 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.Secret)
}

func (s Service) parse(raw, use string) (*claims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.Secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || c.Use != use {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// SignOwnership mints the cookie value proving its holder created the
// comment. TTL is the configured ownership window.
func (s Service) SignOwnership(id int64, ttl time.Duration) (string, error) {
	return s.sign(claims{Use: useOwnership, Comment: &id}, ttl)
}

// VerifyOwnership checks that raw proves ownership of exactly comment id.
func (s Service) VerifyOwnership(raw string, id int64) error {
	c, err := s.parse(raw, useOwnership)
	if err != nil {
		return err
	}
	if c.Comment == nil || *c.Comment != id {
		return ErrInvalidToken
	}
	return nil
}

// SignModeration mints the key embedded in a moderation action link.
// The key binds both the action and the comment, so a delete key cannot
// activate and vice versa.
func (s Service) SignModeration(action string, id int64, ttl time.Duration) (string, error) {
	return s.sign(claims{Use: useModeration, Action: &action, Comment: &id}, ttl)
}

// VerifyModeration checks that raw authorizes exactly this action on
// exactly comment id.
func (s Service) VerifyModeration(raw, action string, id int64) error {
	c, err := s.parse(raw, useModeration)
	if err != nil {
		return err
	}
	if c.Action == nil || *c.Action != action {
		return ErrInvalidToken
	}
	if c.Comment == nil || *c.Comment != id {
		return ErrInvalidToken
	}
	return nil
}

// SignUnsubscribe mints the key for an unsubscribe link. The payload is a
// pair of the discriminator and the subscriber email; a token carrying
// only half the pair never verifies.
func (s Service) SignUnsubscribe(email string, ttl time.Duration) (string, error) {
	return s.sign(claims{Use: useUnsubscribe, Email: &email}, ttl)
}

// VerifyUnsubscribe checks that raw authorizes unsubscribing exactly this
// email address.
func (s Service) VerifyUnsubscribe(raw, email string) error {
	c, err := s.parse(raw, useUnsubscribe)
	if err != nil {
		return err
	}
	if c.Email == nil || *c.Email != email {
		return ErrInvalidToken
	}
	return nil
}
