package engine

import (
	"net/url"
	"strings"
)

// Field length bounds, matching what the stores are sized for.
const (
	MaxTextLen    = 65535
	MaxAuthorLen  = 255
	MaxEmailLen   = 254
	MaxWebsiteLen = 255
)

// NewComment is the validated client input for a creation request.
type NewComment struct {
	Text         string
	Parent       *int64
	Author       *string
	Email        *string
	Website      *string
	Title        *string
	Notification bool
}

// Validate checks all field bounds. It normalizes the website to carry an
// http scheme so stored values are always absolute URLs.
func (n *NewComment) Validate() error {
	if err := ValidateText(n.Text); err != nil {
		return err
	}
	if n.Author != nil && len(*n.Author) > MaxAuthorLen {
		return Invalid("author", "is too long")
	}
	if n.Email != nil && len(*n.Email) > MaxEmailLen {
		return Invalid("email", "is too long")
	}
	if n.Website != nil {
		w := strings.TrimSpace(*n.Website)
		if len(w) > MaxWebsiteLen {
			return Invalid("website", "is too long")
		}
		if w != "" {
			if !IsURL(w) {
				return Invalid("website", "is not a valid URL")
			}
			if !strings.Contains(w, "://") {
				w = "http://" + w
			}
			n.Website = &w
		} else {
			n.Website = nil
		}
	}
	return nil
}

// Validate checks an edit the same way a creation is checked.
func (e *Edit) Validate() error {
	n := NewComment{Text: e.Text, Author: e.Author, Website: e.Website}
	if err := n.Validate(); err != nil {
		return err
	}
	e.Website = n.Website
	return nil
}

// ValidateText rejects blank or oversized comment bodies.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return Invalid("text", "is required")
	}
	if len(text) > MaxTextLen {
		return Invalid("text", "is too long")
	}
	return nil
}

// IsURL reports whether s looks like an http(s) URL. A missing scheme is
// tolerated ("example.tld"), any other scheme is not.
func IsURL(s string) bool {
	if !strings.Contains(s, "://") {
		if strings.Contains(s, ":") {
			// Something scheme-ish like "tel:+123" or a bare port.
			return false
		}
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host != "" && strings.Contains(host, ".")
}
