package auth

import (
	"errors"
	"net/http"
	"strings"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "
	tokenQueryParam     = "token"
)

var (
	errMissingAuthorizationHeader = errors.New("missing Authorization header")
	errInvalidAuthorizationHeader = errors.New("invalid Authorization header")
)

func parseBearerToken(r *http.Request) (string, error) {
	reqToken := r.Header.Get(authorizationHeader)
	if reqToken == "" {
		return "", errMissingAuthorizationHeader
	}
	splitToken := strings.Split(reqToken, bearerPrefix)
	if len(splitToken) != 2 {
		return "", errInvalidAuthorizationHeader
	}
	return strings.TrimSpace(splitToken[1]), nil
}

// TokenFromRequest reads the bearer token, falling back to the "token" query
// parameter because browsers cannot set headers on websocket upgrades.
func TokenFromRequest(r *http.Request) (string, error) {
	token, err := parseBearerToken(r)
	if errors.Is(err, errMissingAuthorizationHeader) {
		if q := strings.TrimSpace(r.URL.Query().Get(tokenQueryParam)); q != "" {
			return q, nil
		}
	}
	return token, err
}
