// Package session gates pages and message endpoints on the presence of the
// auth cookie. The cookie value is never resolved server-side.
package session

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	LoginPath = "/login"
	ChatPath  = "/chat"
)

// Cookies writes and reads the session cookie.
type Cookies struct {
	Name   string
	Secure bool
}

func (c Cookies) Set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// Token returns the cookie value, or an error when it is missing or blank.
func (c Cookies) Token(r *http.Request) (string, error) {
	cookie, err := r.Cookie(c.Name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cookie.Value) == "" {
		return "", errors.New("empty session cookie")
	}
	return cookie.Value, nil
}

func (c Cookies) Authenticated(r *http.Request) bool {
	_, err := c.Token(r)
	return err == nil
}

// GatePages redirects anonymous visitors to the login page and signed-in
// visitors away from it.
func (c Cookies) GatePages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated := c.Authenticated(r)
		public := r.URL.Path == LoginPath

		switch {
		case public && authenticated:
			http.Redirect(w, r, ChatPath, http.StatusSeeOther)
		case !public && !authenticated:
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// RequireAPI rejects requests without the cookie with 401.
func (c Cookies) RequireAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Authenticated(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
