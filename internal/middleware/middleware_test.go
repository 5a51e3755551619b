package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRequireToken(t *testing.T) {
	h := RequireToken("s3cret")(okHandler)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer ok", "Bearer s3cret", "", http.StatusOK},
		{"bearer wrong", "Bearer nope", "", http.StatusUnauthorized},
		{"missing", "", "", http.StatusUnauthorized},
		{"basic scheme", "Basic s3cret", "", http.StatusUnauthorized},
		{"query ok", "", "s3cret", http.StatusOK},
		{"query wrong", "", "x", http.StatusUnauthorized},
		{"header wins over query", "Bearer nope", "s3cret", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/api/v1/ssh"
			if tt.query != "" {
				target += "?token=" + tt.query
			}
			req := httptest.NewRequest("GET", target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireTokenDisabled(t *testing.T) {
	h := RequireToken("")(okHandler)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when no token is configured", w.Code)
	}
}

func TestParseAllowedIPs(t *testing.T) {
	nets, err := ParseAllowedIPs(" 10.0.0.0/8, 192.168.1.5 ,::1,, ")
	if err != nil {
		t.Fatalf("ParseAllowedIPs() error: %v", err)
	}
	if len(nets) != 3 {
		t.Fatalf("expected 3 networks, got %d", len(nets))
	}
	if nets[1].String() != "192.168.1.5/32" {
		t.Errorf("single IPv4 = %s, want 192.168.1.5/32", nets[1])
	}
	if nets[2].String() != "::1/128" {
		t.Errorf("single IPv6 = %s, want ::1/128", nets[2])
	}

	if nets, err := ParseAllowedIPs(""); err != nil || nets != nil {
		t.Errorf("empty list = %v, %v", nets, err)
	}
	for _, bad := range []string{"10.0.0.0/33", "not-an-ip", "1.2.3"} {
		if _, err := ParseAllowedIPs(bad); err == nil {
			t.Errorf("ParseAllowedIPs(%q) should fail", bad)
		}
	}
}

func TestAllowIPs(t *testing.T) {
	nets, err := ParseAllowedIPs("127.0.0.1, 10.1.0.0/16")
	if err != nil {
		t.Fatal(err)
	}
	h := AllowIPs(nets)(okHandler)

	tests := []struct {
		remote string
		xff    string
		want   int
	}{
		{"127.0.0.1:5555", "", http.StatusOK},
		{"10.1.2.3:80", "", http.StatusOK},
		{"10.2.0.1:80", "", http.StatusForbidden},
		{"8.8.8.8:1234", "127.0.0.1", http.StatusForbidden},
		{"garbage", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("remote %s: status = %d, want %d", tt.remote, w.Code, tt.want)
		}
	}

	open := AllowIPs(nil)(okHandler)
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("nil allow list should allow everything, got %d", w.Code)
	}
}
