package main

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// tokenAuth accepts bearer tokens from a configured list. Entries starting
// with "$2" are bcrypt hashes; anything else is compared verbatim. With an
// empty list any non-empty token passes.
type tokenAuth struct {
	plain  [][]byte
	hashed [][]byte
}

func newTokenAuth(tokens []string) *tokenAuth {
	a := &tokenAuth{}
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "$2") {
			a.hashed = append(a.hashed, []byte(t))
		} else {
			a.plain = append(a.plain, []byte(t))
		}
	}
	return a
}

func (a *tokenAuth) open() bool {
	return len(a.plain) == 0 && len(a.hashed) == 0
}

func (a *tokenAuth) valid(token string) bool {
	if token == "" {
		return false
	}
	if a.open() {
		return true
	}
	tok := []byte(token)
	for _, p := range a.plain {
		if subtle.ConstantTimeCompare(p, tok) == 1 {
			return true
		}
	}
	for _, h := range a.hashed {
		if bcrypt.CompareHashAndPassword(h, tok) == nil {
			return true
		}
	}
	return false
}

// bearerToken reads the token from the Authorization header, falling back to
// the access_token cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie("access_token"); err == nil {
		return c.Value
	}
	return ""
}

// requireToken rejects requests without a valid bearer token.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next(w, r)
			return
		}
		token := bearerToken(r)
		if token == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.respondError(w, http.StatusUnauthorized, "Missing access token")
			return
		}
		if !s.auth.valid(token) {
			s.log.Warnf("Rejected token from %s", getClientIP(r))
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			s.respondError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}
		next(w, r)
	}
}
