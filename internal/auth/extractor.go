package auth

import (
	"net/http"
	"strings"
)

// Extractor pulls a candidate token out of a connection handshake. Extractors
// are side-effect free and return "" when their source is absent.
type Extractor func(r *http.Request) string

// HeaderExtractor reads an "Authorization: Bearer <token>" header.
func HeaderExtractor(r *http.Request) string {
	value := r.Header.Get("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// QueryExtractor reads a "token" query parameter.
func QueryExtractor(r *http.Request) string {
	return r.URL.Query().Get("token")
}

// HandshakeExtractors is the fixed priority order for credential sources on
// the HTTP side of a handshake. A token supplied in the post-upgrade auth
// frame is the third source and is handled by the gateway.
var HandshakeExtractors = []Extractor{
	HeaderExtractor,
	QueryExtractor,
}

// ExtractToken evaluates extractors in order and stops at the first match.
func ExtractToken(r *http.Request, extractors []Extractor) string {
	for _, extract := range extractors {
		if token := extract(r); token != "" {
			return token
		}
	}
	return ""
}
