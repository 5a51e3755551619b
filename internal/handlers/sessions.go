package handlers

import (
	"net/http"
	"strings"

	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/go-chi/chi/v5"
)

type saveSessionRequest struct {
	Config    sshmanager.ConnectionConfig `json:"config"`
	AuthValue string                      `json:"auth_value"`
}

type connectSessionRequest struct {
	Passphrase string `json:"passphrase"`
}

func sessionName(r *http.Request) (string, bool) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	return name, name != ""
}

// LoadSessions lists saved profiles without credentials.
func (a *API) LoadSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := a.Sessions.Load()
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// SaveSession encrypts auth_value with the vault and stores the profile.
// An auth_value inside config is ignored.
func (a *API) SaveSession(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Session name is required")
		return
	}
	var req saveSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Config.AuthType.IsValid() {
		writeError(w, http.StatusBadRequest, "Unsupported auth type "+string(req.Config.AuthType))
		return
	}

	encrypted, err := a.Vault.Encrypt(req.AuthValue)
	if err != nil {
		writeErr(w, err)
		return
	}
	if err := a.Sessions.Save(name, req.Config, encrypted); err != nil {
		writeErr(w, err)
		return
	}
	a.Auditor.LogSession(sshaudit.EventSessionSaved, name, sshaudit.ExtractSourceIP(r))
	w.WriteHeader(http.StatusNoContent)
}

// GetSessionCredentials returns the decrypted auth value of a profile.
func (a *API) GetSessionCredentials(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Session name is required")
		return
	}
	authValue, err := a.sessionCredentials(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	a.Auditor.LogSession(sshaudit.EventCredentialsRead, name, sshaudit.ExtractSourceIP(r))
	writeJSON(w, http.StatusOK, map[string]string{"auth_value": authValue})
}

func (a *API) sessionCredentials(name string) (string, error) {
	sess, err := a.Sessions.Get(name)
	if err != nil {
		return "", err
	}
	return a.Vault.Decrypt(sess.EncryptedAuth)
}

// DeleteSession removes a profile. Unknown names succeed.
func (a *API) DeleteSession(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Session name is required")
		return
	}
	if err := a.Sessions.Delete(name); err != nil {
		writeErr(w, err)
		return
	}
	a.Auditor.LogSession(sshaudit.EventSessionDeleted, name, sshaudit.ExtractSourceIP(r))
	w.WriteHeader(http.StatusNoContent)
}

// ConnectSession connects with a saved profile and its stored credential.
// The request body may carry a key passphrase, which is never stored.
func (a *API) ConnectSession(w http.ResponseWriter, r *http.Request) {
	name, ok := sessionName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Session name is required")
		return
	}
	var req connectSessionRequest
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	sess, err := a.Sessions.Get(name)
	if err != nil {
		writeErr(w, err)
		return
	}
	authValue, err := a.Vault.Decrypt(sess.EncryptedAuth)
	if err != nil {
		writeErr(w, err)
		return
	}
	cfg := sess.Config
	cfg.AuthValue = authValue
	cfg.Passphrase = req.Passphrase
	a.connect(w, r, cfg)
}
