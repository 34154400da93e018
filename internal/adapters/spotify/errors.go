package spotify

import (
	"encoding/json"
	"net/http"

	"github.com/ewilliams-labs/cadence/internal/core/ports"
)

// spotifyErrorEnvelope is the catalog's regular error payload.
type spotifyErrorEnvelope struct {
	Error *struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseErrorEnvelope(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	var env spotifyErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return "", false
	}
	return env.Error.Message, true
}

// classifyStatus maps an HTTP status to the catalog error taxonomy. It
// returns nil for 2xx.
func classifyStatus(status int, body []byte) *ports.CatalogError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		msg, _ := parseErrorEnvelope(body)
		return &ports.CatalogError{Kind: ports.KindAuthenticationRequired, Status: status, Message: msg}
	case status == http.StatusTooManyRequests || status >= http.StatusInternalServerError:
		msg, _ := parseErrorEnvelope(body)
		return &ports.CatalogError{Kind: ports.KindNetwork, Status: status, Message: msg, Temporary: true}
	}

	if msg, ok := parseErrorEnvelope(body); ok {
		return &ports.CatalogError{Kind: ports.KindApplication, Status: status, Message: msg}
	}
	return &ports.CatalogError{Kind: ports.KindNetwork, Status: status, Message: http.StatusText(status)}
}
