// Package handlers exposes the connection registry, saved sessions, key
// management and preferences over HTTP and WebSocket.
package handlers

import (
	"github.com/gluk-w/sshdeck/internal/appconfig"
	"github.com/gluk-w/sshdeck/internal/logging"
	"github.com/gluk-w/sshdeck/internal/sessionstore"
	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshkeys"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/vault"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// API holds the long-lived objects every handler works against. They are
// constructed once in main and shared by all requests.
type API struct {
	Registry *sshmanager.Registry
	Vault    *vault.Vault
	Sessions *sessionstore.Store
	Keys     *sshkeys.Store
	Auditor  *sshaudit.Auditor
	Config   *appconfig.Manager
	Logger   *logging.Logger
	DB       *gorm.DB
	Version  string
}

// Routes registers the API under r. Callers mount it at /api/v1 and add
// authentication in front.
func (a *API) Routes(r chi.Router) {
	r.Get("/version", a.GetVersion)
	r.Get("/health", a.HealthCheck)

	r.Route("/ssh", func(r chi.Router) {
		r.Get("/", a.ListConnections)
		r.Post("/connect", a.Connect)
		r.Get("/events", a.GetConnectionEvents)
		r.Get("/{id}", a.GetConnection)
		r.Delete("/{id}", a.Disconnect)
		r.Post("/{id}/input", a.SendCommand)
		r.Get("/{id}/output", a.ReadOutput)
		r.Post("/{id}/resize", a.ResizeTerminal)
		r.Get("/{id}/ws", a.TerminalWS)
	})

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", a.LoadSessions)
		r.Put("/{name}", a.SaveSession)
		r.Get("/{name}/credentials", a.GetSessionCredentials)
		r.Delete("/{name}", a.DeleteSession)
		r.Post("/{name}/connect", a.ConnectSession)
	})

	r.Route("/keys", func(r chi.Router) {
		r.Get("/", a.ListKeys)
		r.Post("/generate", a.GenerateKey)
		r.Put("/{name}", a.SaveKey)
		r.Get("/{name}", a.LoadKey)
		r.Get("/{name}/info", a.GetKeyInfo)
		r.Delete("/{name}", a.DeleteKey)
	})

	r.Get("/config", a.GetAppConfig)
	r.Put("/config", a.UpdateAppConfig)
	r.Get("/themes", a.ListThemes)
	r.Get("/themes/{name}", a.GetTheme)

	r.Get("/audit", a.GetAuditLogs)
	r.Post("/audit/purge", a.PurgeAuditLogs)
	r.Get("/logs", a.GetServerLogs)
}
