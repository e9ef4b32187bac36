package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"unicode"
)

// DefaultIdentityHeader is the header an authenticating proxy sets with the
// external user ID.
const DefaultIdentityHeader = "X-User-ID"

const maxIdentityLength = 128

var (
	ErrNoIdentity      = errors.New("no user identity on request")
	ErrInvalidIdentity = errors.New("malformed user identity")
)

// IdentityResolver extracts the authenticated external user ID from a
// request. Authentication itself happens in front of this server.
type IdentityResolver interface {
	Resolve(r *http.Request) (string, error)
}

// PermissionGate decides whether a user may join. *reward.RoyaleClient
// implements it.
type PermissionGate interface {
	CanReceivePayout(ctx context.Context, userID string) (bool, error)
}

// HeaderResolver reads the identity from Header, falling back to the "user"
// query parameter when AllowQuery is set. Browsers cannot set headers on a
// websocket handshake, hence the fallback.
type HeaderResolver struct {
	Header     string
	AllowQuery bool
}

func (h HeaderResolver) Resolve(r *http.Request) (string, error) {
	header := h.Header
	if header == "" {
		header = DefaultIdentityHeader
	}

	id := strings.TrimSpace(r.Header.Get(header))
	if id == "" && h.AllowQuery {
		id = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if id == "" {
		return "", ErrNoIdentity
	}

	if len(id) > maxIdentityLength || strings.IndexFunc(id, unicode.IsControl) >= 0 {
		return "", ErrInvalidIdentity
	}
	return id, nil
}
