package accountcore

import (
	"net/http"
	"time"
)

// SessionCookie returns the HttpOnly cookie carrying tok.
func (e *Engine) SessionCookie(tok SessionToken) *http.Cookie {
	maxAge := int(tok.ExpiresAt.Sub(e.now()) / time.Second)
	if maxAge <= 0 {
		maxAge = int(e.config.Token.SessionTTL / time.Second)
	}
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    tok.Value,
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		Expires:  tok.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		Secure:   e.config.Cookie.Secure,
		HttpOnly: true,
		SameSite: e.config.Cookie.SameSite,
	}
}

// ClearSessionCookie returns a cookie that deletes the session cookie.
func (e *Engine) ClearSessionCookie() *http.Cookie {
	return &http.Cookie{
		Name:     e.config.Cookie.Name,
		Value:    "",
		Path:     e.config.Cookie.Path,
		Domain:   e.config.Cookie.Domain,
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
		Secure:   e.config.Cookie.Secure,
		HttpOnly: true,
		SameSite: e.config.Cookie.SameSite,
	}
}

// SessionFromRequest returns the session token carried by r: the session
// cookie first, then an "Authorization: Bearer" header.
func (e *Engine) SessionFromRequest(r *http.Request) string {
	if c, err := r.Cookie(e.config.Cookie.Name); err == nil && c.Value != "" {
		return c.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
