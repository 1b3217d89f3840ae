package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okeyhub/okey101/internal/auth"
)

// tokenCookie is the cookie a seat ticket is stored in.
const tokenCookie = "auth_token"

var errMissingTicket = errors.New("missing seat ticket")

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// ticketFromRequest reads a seat ticket from the token query parameter, a bearer header or
// the auth cookie, in that order.
func ticketFromRequest(issuer *auth.Issuer, r *http.Request) (auth.Ticket, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimPrefix(h, "Bearer ")
		}
	}
	if token == "" {
		token = extractCookieToken(r.Header.Get("Cookie"), tokenCookie)
	}
	if token == "" {
		return auth.Ticket{}, errMissingTicket
	}
	return issuer.AuthenticateJWT(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
