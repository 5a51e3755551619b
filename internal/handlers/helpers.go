package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gluk-w/sshdeck/internal/sessionstore"
	"github.com/gluk-w/sshdeck/internal/sshkeys"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/vault"
)

// maxBodySize bounds every JSON request body.
const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// errorStatus maps component error kinds to HTTP status codes. Unknown
// errors are internal.
func errorStatus(err error) int {
	switch sshmanager.KindOf(err) {
	case sshmanager.KindNotFound:
		return http.StatusNotFound
	case sshmanager.KindConfig:
		return http.StatusBadRequest
	case sshmanager.KindAuth:
		return http.StatusUnauthorized
	case sshmanager.KindHostKey:
		return http.StatusConflict
	case sshmanager.KindRateLimited:
		return http.StatusTooManyRequests
	case sshmanager.KindTransport, sshmanager.KindHandshake,
		sshmanager.KindChannel, sshmanager.KindPty, sshmanager.KindShell,
		sshmanager.KindWrite, sshmanager.KindRead, sshmanager.KindResize:
		return http.StatusBadGateway
	}

	var unsupported *sshkeys.UnsupportedKeyTypeError
	switch {
	case sessionstore.IsKind(err, sessionstore.KindNotFound),
		vault.IsKind(err, vault.KindNotFound):
		return http.StatusNotFound
	case errors.Is(err, sshkeys.ErrEmptyName), errors.As(err, &unsupported):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}
