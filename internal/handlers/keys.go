package handlers

import (
	"net/http"

	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshkeys"
	"github.com/go-chi/chi/v5"
)

type generateKeyRequest struct {
	Type       string `json:"type"`
	Bits       int    `json:"bits"`
	Passphrase string `json:"passphrase"`
	Comment    string `json:"comment"`
	// SaveAs stores the generated private key in the vault under this name.
	SaveAs string `json:"save_as"`
}

type saveKeyRequest struct {
	PrivateKey string `json:"private_key"`
}

// GenerateKey creates a new key pair and optionally saves it.
func (a *API) GenerateKey(w http.ResponseWriter, r *http.Request) {
	var req generateKeyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := sshkeys.Generate(sshkeys.GenerateOptions{
		Type:       req.Type,
		Bits:       req.Bits,
		Passphrase: req.Passphrase,
		Comment:    req.Comment,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ip := sshaudit.ExtractSourceIP(r)
	a.Auditor.LogKey(sshaudit.EventKeyGenerated, req.SaveAs, pair.Fingerprint, ip)

	if req.SaveAs != "" {
		if err := a.Keys.Save(req.SaveAs, pair.PrivateKey); err != nil {
			writeErr(w, err)
			return
		}
		a.Auditor.LogKey(sshaudit.EventKeySaved, req.SaveAs, pair.Fingerprint, ip)
	}
	writeJSON(w, http.StatusOK, pair)
}

// ListKeys returns stored key names. Backends that cannot enumerate
// entries return an empty list.
func (a *API) ListKeys(w http.ResponseWriter, r *http.Request) {
	names, err := a.Keys.List()
	if err != nil {
		writeErr(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keys": names,
	})
}

func (a *API) SaveKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req saveKeyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	info, err := sshkeys.Describe([]byte(req.PrivateKey))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Keys.Save(name, req.PrivateKey); err != nil {
		writeErr(w, err)
		return
	}
	a.Auditor.LogKey(sshaudit.EventKeySaved, name, info.Fingerprint, sshaudit.ExtractSourceIP(r))
	info.Name = name
	writeJSON(w, http.StatusOK, info)
}

// LoadKey returns the private key text.
func (a *API) LoadKey(w http.ResponseWriter, r *http.Request) {
	key, err := a.Keys.Load(chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"private_key": key})
}

// GetKeyInfo describes the stored key's public half.
func (a *API) GetKeyInfo(w http.ResponseWriter, r *http.Request) {
	info, err := a.Keys.Info(chi.URLParam(r, "name"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (a *API) DeleteKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.Keys.Delete(name); err != nil {
		writeErr(w, err)
		return
	}
	a.Auditor.LogKey(sshaudit.EventKeyDeleted, name, "", sshaudit.ExtractSourceIP(r))
	w.WriteHeader(http.StatusNoContent)
}
