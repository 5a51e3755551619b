package handlers

import (
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gluk-w/sshdeck/internal/sshaudit"
	"github.com/gluk-w/sshdeck/internal/sshmanager"
	"github.com/gluk-w/sshdeck/internal/sshtest"
)

func passwordConfig(s *sshtest.Server) sshmanager.ConnectionConfig {
	return sshmanager.ConnectionConfig{
		Host:      s.Host,
		Port:      s.Port,
		Username:  "tester",
		AuthType:  sshmanager.AuthPassword,
		AuthValue: testPassword,
	}
}

func (e *testEnv) connect(t *testing.T, cfg sshmanager.ConnectionConfig) string {
	t.Helper()
	w := e.do(t, "POST", "/ssh/connect", cfg)
	expectStatus(t, w, http.StatusCreated)
	var resp map[string]string
	decodeResponse(t, w, &resp)
	if resp["session_id"] == "" {
		t.Fatal("empty session_id")
	}
	return resp["session_id"]
}

// pollOutput reads /output until the accumulated text contains want.
func (e *testEnv) pollOutput(t *testing.T, id, want string) string {
	t.Helper()
	var got strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		w := e.do(t, "GET", "/ssh/"+id+"/output", nil)
		expectStatus(t, w, http.StatusOK)
		var resp map[string]string
		decodeResponse(t, w, &resp)
		got.WriteString(resp["output"])
		if strings.Contains(got.String(), want) {
			return got.String()
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q, got %q", want, got.String())
	return ""
}

func TestConnectSendReadResizeDisconnect(t *testing.T) {
	srv := sshtest.Start(t, sshtest.Options{Password: testPassword, Banner: "welcome\r\n"})
	env := newTestEnv(t)

	id := env.connect(t, passwordConfig(srv))
	env.pollOutput(t, id, "welcome")

	w := env.do(t, "POST", "/ssh/"+id+"/input", map[string]string{"data": "echo hi\n"})
	expectStatus(t, w, http.StatusNoContent)
	env.pollOutput(t, id, "echo hi")

	w = env.do(t, "POST", "/ssh/"+id+"/resize", map[string]int{"cols": 120, "rows": 40})
	expectStatus(t, w, http.StatusNoContent)

	w = env.do(t, "GET", "/ssh", nil)
	expectStatus(t, w, http.StatusOK)
	var list struct {
		Connections []sshmanager.ConnectionInfo `json:"connections"`
	}
	decodeResponse(t, w, &list)
	if len(list.Connections) != 1 || list.Connections[0].SessionID != id {
		t.Fatalf("unexpected connections: %+v", list.Connections)
	}
	if list.Connections[0].State != sshmanager.StateShellActive {
		t.Errorf("state = %s, want shell_active", list.Connections[0].State)
	}

	w = env.do(t, "GET", "/ssh/"+id, nil)
	expectStatus(t, w, http.StatusOK)
	var detail struct {
		Connection  sshmanager.ConnectionInfo   `json:"connection"`
		Transitions []sshmanager.StateTransition `json:"transitions"`
	}
	decodeResponse(t, w, &detail)
	if len(detail.Transitions) == 0 || detail.Transitions[len(detail.Transitions)-1].To != sshmanager.StateShellActive {
		t.Errorf("unexpected transitions: %+v", detail.Transitions)
	}

	w = env.do(t, "DELETE", "/ssh/"+id, nil)
	expectStatus(t, w, http.StatusNoContent)

	w = env.do(t, "GET", "/ssh/"+id+"/output", nil)
	expectStatus(t, w, http.StatusNotFound)

	// Disconnect is idempotent.
	w = env.do(t, "DELETE", "/ssh/"+id, nil)
	expectStatus(t, w, http.StatusNoContent)
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method, path string
		body         interface{}
	}{
		{"POST", "/ssh/nope/input", map[string]string{"data": "x"}},
		{"GET", "/ssh/nope/output", nil},
		{"POST", "/ssh/nope/resize", map[string]int{"cols": 80, "rows": 24}},
		{"GET", "/ssh/nope", nil},
		{"GET", "/ssh/nope/ws", nil},
	}
	for _, tt := range tests {
		w := env.do(t, tt.method, tt.path, tt.body)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s %s: status = %d, want 404", tt.method, tt.path, w.Code)
		}
	}
}

func TestConnectErrorStatuses(t *testing.T) {
	srv := sshtest.Start(t, sshtest.Options{Password: testPassword})
	env := newTestEnv(t)

	wrongPassword := passwordConfig(srv)
	wrongPassword.AuthValue = "nope"

	unsupported := passwordConfig(srv)
	unsupported.AuthType = "kerberos"

	// A listener that is closed immediately gives a port nothing listens on.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	closedPort := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()
	unreachable := passwordConfig(srv)
	unreachable.Port = closedPort

	tests := []struct {
		name string
		cfg  sshmanager.ConnectionConfig
		want int
	}{
		{"wrong password", wrongPassword, http.StatusUnauthorized},
		{"unsupported auth type", unsupported, http.StatusBadRequest},
		{"unreachable", unreachable, http.StatusBadGateway},
		{"missing host", sshmanager.ConnectionConfig{Port: 22, Username: "u", AuthType: sshmanager.AuthPassword}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, "POST", "/ssh/connect", tt.cfg)
			expectStatus(t, w, tt.want)
			var resp map[string]string
			decodeResponse(t, w, &resp)
			if resp["detail"] == "" {
				t.Error("expected a detail message")
			}
		})
	}

	if n := env.api.Registry.Len(); n != 0 {
		t.Errorf("registry holds %d connections after failed connects", n)
	}
}

func TestConnectRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, "POST", "/ssh/connect", map[string]interface{}{"hostname": "x"})
	expectStatus(t, w, http.StatusBadRequest)
}

func TestResizeValidation(t *testing.T) {
	srv := sshtest.Start(t, sshtest.Options{Password: testPassword})
	env := newTestEnv(t)
	id := env.connect(t, passwordConfig(srv))

	for _, size := range []map[string]int{{"cols": 0, "rows": 24}, {"cols": 80, "rows": 0}, {"cols": 100000, "rows": 24}} {
		w := env.do(t, "POST", "/ssh/"+id+"/resize", size)
		if w.Code != http.StatusBadRequest {
			t.Errorf("resize %v: status = %d, want 400", size, w.Code)
		}
	}
}

func TestConnectionEvents(t *testing.T) {
	srv := sshtest.Start(t, sshtest.Options{Password: testPassword})
	env := newTestEnv(t)
	cfg := passwordConfig(srv)
	id := env.connect(t, cfg)
	env.do(t, "DELETE", "/ssh/"+id, nil)

	w := env.do(t, "GET", "/ssh/events?target="+cfg.Target(), nil)
	expectStatus(t, w, http.StatusOK)
	var resp struct {
		Events []sshmanager.ConnectionEvent `json:"events"`
	}
	decodeResponse(t, w, &resp)
	if len(resp.Events) < 2 {
		t.Fatalf("expected at least 2 events, got %+v", resp.Events)
	}
	last := resp.Events[len(resp.Events)-1]
	if resp.Events[0].Type != sshmanager.EventConnected || last.Type != sshmanager.EventDisconnected {
		t.Errorf("unexpected event order: %+v", resp.Events)
	}

	w = env.do(t, "GET", "/ssh/events?limit=0", nil)
	expectStatus(t, w, http.StatusBadRequest)

	// Registry events reach the audit log.
	result, err := env.api.Auditor.Query(sshaudit.QueryOptions{SessionID: id})
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if result.Total < 2 {
		t.Errorf("audit entries for session = %d, want at least 2", result.Total)
	}
}
