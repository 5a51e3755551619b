package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gluk-w/sshdeck/internal/logutil"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/sshterminal"
	"github.com/go-chi/chi/v5"
)

type inputRequest struct {
	Data string `json:"data"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Connect opens a new shell connection and returns its session id.
func (a *API) Connect(w http.ResponseWriter, r *http.Request) {
	var cfg sshmanager.ConnectionConfig
	if err := decodeBody(w, r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a.connect(w, r, cfg)
}

func (a *API) connect(w http.ResponseWriter, r *http.Request, cfg sshmanager.ConnectionConfig) {
	id, err := a.Registry.Connect(r.Context(), cfg)
	if err != nil {
		log.Printf("[api] connect to %s failed: %v", logutil.SanitizeForLog(cfg.Target()), err)
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// Disconnect always succeeds; unknown ids are ignored.
func (a *API) Disconnect(w http.ResponseWriter, r *http.Request) {
	a.Registry.Disconnect(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// SendCommand writes the request's data to the shell verbatim.
func (a *API) SendCommand(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Data) > sshterminal.MaxInputMessageSize {
		writeError(w, http.StatusRequestEntityTooLarge, "Input exceeds "+strconv.Itoa(sshterminal.MaxInputMessageSize)+" bytes")
		return
	}
	if err := a.Registry.SendCommand(chi.URLParam(r, "id"), []byte(req.Data)); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReadOutput returns whatever output is buffered, possibly nothing.
func (a *API) ReadOutput(w http.ResponseWriter, r *http.Request) {
	out, err := a.Registry.ReadOutput(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"output": out})
}

func (a *API) ResizeTerminal(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sshterminal.ValidateSize(req.Cols, req.Rows); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.Registry.ResizeTerminal(chi.URLParam(r, "id"), req.Cols, req.Rows); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) ListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connections": a.Registry.List(),
	})
}

// GetConnection returns one connection's info and its state history.
func (a *API) GetConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	info, err := a.Registry.Info(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	history, err := a.Registry.Transitions(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"connection":  info,
		"transitions": history,
	})
}

// GetConnectionEvents returns recent connection events.
//
// Query parameters:
//
//	target - user@host:port; all targets when omitted
//	limit  - newest N events per target (default 50, max 100)
func (a *API) GetConnectionEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	events := a.Registry.Events()
	targets := events.Targets()
	if t := r.URL.Query().Get("target"); t != "" {
		targets = []string{t}
	}

	out := []sshmanager.ConnectionEvent{}
	for _, t := range targets {
		out = append(out, events.Recent(t, limit)...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": out,
	})
}
