package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gluk-w/sshdeck/internal/appconfig"
	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/go-chi/chi/v5"
)

func (a *API) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Config.Get())
}

// UpdateAppConfig merges the request body over the current preferences.
// Fields left out of the body keep their values.
func (a *API) UpdateAppConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	next := a.Config.Get()
	if err := json.Unmarshal(body, &next); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := next.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := a.Config.Update(func(c *appconfig.AppConfig) { *c = next })
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	a.Auditor.Log(sshaudit.AuditEntry{
		EventType: sshaudit.EventConfigUpdated,
		Target:    "config",
		SourceIP:  sshaudit.ExtractSourceIP(r),
	})
	writeJSON(w, http.StatusOK, updated)
}

func (a *API) ListThemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"themes": appconfig.ThemeNames(),
	})
}

func (a *API) GetTheme(w http.ResponseWriter, r *http.Request) {
	theme, ok := appconfig.GetTheme(chi.URLParam(r, "name"))
	if !ok {
		writeError(w, http.StatusNotFound, "Theme not found")
		return
	}
	writeJSON(w, http.StatusOK, theme)
}
