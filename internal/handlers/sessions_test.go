package handlers

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/gluk-w/sshdeck/internal/sessionstore"
	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/sshtest"
)

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	cfg := sshmanager.ConnectionConfig{
		Host:     "example.com",
		Port:     2222,
		Username: "deploy",
		AuthType: sshmanager.AuthPassword,
	}

	w := env.do(t, "PUT", "/sessions/prod", map[string]interface{}{"config": cfg, "auth_value": "hunter2"})
	expectStatus(t, w, http.StatusNoContent)

	w = env.do(t, "GET", "/sessions", nil)
	expectStatus(t, w, http.StatusOK)
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Fatal("session listing leaks the credential")
	}
	var list struct {
		Sessions []sessionstore.Summary `json:"sessions"`
	}
	decodeResponse(t, w, &list)
	if len(list.Sessions) != 1 {
		t.Fatalf("expected 1 session, got %+v", list.Sessions)
	}
	got := list.Sessions[0]
	if got.Name != "prod" || got.Host != "example.com" || got.Port != 2222 || got.Username != "deploy" || got.AuthType != sshmanager.AuthPassword {
		t.Errorf("unexpected summary: %+v", got)
	}

	data, err := os.ReadFile(env.api.Sessions.Path())
	if err != nil {
		t.Fatalf("read sessions file: %v", err)
	}
	if strings.Contains(string(data), "hunter2") {
		t.Fatal("sessions file holds the plaintext credential")
	}

	w = env.do(t, "GET", "/sessions/prod/credentials", nil)
	expectStatus(t, w, http.StatusOK)
	var creds map[string]string
	decodeResponse(t, w, &creds)
	if creds["auth_value"] != "hunter2" {
		t.Errorf("auth_value = %q, want hunter2", creds["auth_value"])
	}

	w = env.do(t, "DELETE", "/sessions/prod", nil)
	expectStatus(t, w, http.StatusNoContent)
	w = env.do(t, "GET", "/sessions/prod/credentials", nil)
	expectStatus(t, w, http.StatusNotFound)
	w = env.do(t, "DELETE", "/sessions/prod", nil)
	expectStatus(t, w, http.StatusNoContent)

	for _, ev := range []string{sshaudit.EventSessionSaved, sshaudit.EventCredentialsRead, sshaudit.EventSessionDeleted} {
		result, err := env.api.Auditor.Query(sshaudit.QueryOptions{EventType: ev, Target: "session:prod"})
		if err != nil {
			t.Fatalf("Query() error: %v", err)
		}
		if result.Total == 0 {
			t.Errorf("no %s audit entry", ev)
		}
	}
}

func TestSaveSessionOverwrites(t *testing.T) {
	env := newTestEnv(t)
	cfg := sshmanager.ConnectionConfig{Host: "a", Port: 22, Username: "u", AuthType: sshmanager.AuthPassword}

	env.do(t, "PUT", "/sessions/x", map[string]interface{}{"config": cfg, "auth_value": "first"})
	cfg.Host = "b"
	env.do(t, "PUT", "/sessions/x", map[string]interface{}{"config": cfg, "auth_value": "second"})

	w := env.do(t, "GET", "/sessions/x/credentials", nil)
	expectStatus(t, w, http.StatusOK)
	var creds map[string]string
	decodeResponse(t, w, &creds)
	if creds["auth_value"] != "second" {
		t.Errorf("auth_value = %q, want second", creds["auth_value"])
	}
	sess, err := env.api.Sessions.Get("x")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if sess.Config.Host != "b" {
		t.Errorf("host = %q, want b", sess.Config.Host)
	}
}

func TestSaveSessionValidation(t *testing.T) {
	env := newTestEnv(t)
	bad := sshmanager.ConnectionConfig{Host: "a", Port: 22, Username: "u", AuthType: "telnet"}

	w := env.do(t, "PUT", "/sessions/x", map[string]interface{}{"config": bad, "auth_value": "v"})
	expectStatus(t, w, http.StatusBadRequest)

	w = env.do(t, "PUT", "/sessions/%20", map[string]interface{}{"config": bad})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestConnectSavedSession(t *testing.T) {
	srv := sshtest.Start(t, sshtest.Options{Password: testPassword, Banner: "saved\r\n"})
	env := newTestEnv(t)

	cfg := passwordConfig(srv)
	cfg.AuthValue = ""
	w := env.do(t, "PUT", "/sessions/lab", map[string]interface{}{"config": cfg, "auth_value": testPassword})
	expectStatus(t, w, http.StatusNoContent)

	w = env.do(t, "POST", "/sessions/lab/connect", nil)
	expectStatus(t, w, http.StatusCreated)
	var resp map[string]string
	decodeResponse(t, w, &resp)
	env.pollOutput(t, resp["session_id"], "saved")

	w = env.do(t, "POST", "/sessions/missing/connect", nil)
	expectStatus(t, w, http.StatusNotFound)
}
