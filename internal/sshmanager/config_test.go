package sshmanager

import "testing"

func TestConnectionConfigAddrAndTarget(t *testing.T) {
	cfg := ConnectionConfig{Host: "example.com", Port: 2222, Username: "root"}
	if got := cfg.Addr(); got != "example.com:2222" {
		t.Errorf("Addr() = %q", got)
	}
	if got := cfg.Target(); got != "root@example.com:2222" {
		t.Errorf("Target() = %q", got)
	}

	v6 := ConnectionConfig{Host: "::1", Port: 22, Username: "u"}
	if got := v6.Addr(); got != "[::1]:22" {
		t.Errorf("Addr() for IPv6 = %q", got)
	}
}

func TestAuthTypeIsValid(t *testing.T) {
	for _, a := range []AuthType{AuthPassword, AuthKey, AuthAgent} {
		if !a.IsValid() {
			t.Errorf("%q should be valid", a)
		}
	}
	for _, a := range []AuthType{"", "Password", "kerberos"} {
		if a.IsValid() {
			t.Errorf("%q should be invalid", a)
		}
	}
}

func TestValidateAgentIgnoresAuthValue(t *testing.T) {
	cfg := ConnectionConfig{Host: "h", Port: 22, Username: "u", AuthType: AuthAgent}
	if err := cfg.Validate(); err != nil {
		t.Errorf("agent config without auth value should be valid: %v", err)
	}
}

func TestErrorKindStrings(t *testing.T) {
	err := &Error{Kind: KindAuth, Op: "connect"}
	if err.Error() != "connect: authentication failed" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Kind(99).String() != "unknown" {
		t.Error("unknown kind should stringify as unknown")
	}
	if KindOf(nil) != 0 {
		t.Error("KindOf(nil) should be 0")
	}
}
