package sshmanager

import (
	"fmt"
	"net"
	"strconv"
)

// AuthType selects how a connection authenticates.
type AuthType string

const (
	AuthPassword AuthType = "password"
	AuthKey      AuthType = "key"
	AuthAgent    AuthType = "agent"
)

// IsValid reports whether t is one of the supported auth types.
func (t AuthType) IsValid() bool {
	switch t {
	case AuthPassword, AuthKey, AuthAgent:
		return true
	}
	return false
}

// ConnectionConfig holds the parameters of one connection attempt.
// AuthValue is the password for AuthPassword, a private key path for
// AuthKey and ignored for AuthAgent. Passphrase unlocks an encrypted
// private key and is only read for AuthKey.
type ConnectionConfig struct {
	Host       string   `json:"host"`
	Port       uint16   `json:"port"`
	Username   string   `json:"username"`
	AuthType   AuthType `json:"auth_type"`
	AuthValue  string   `json:"auth_value,omitempty"`
	Passphrase string   `json:"passphrase,omitempty"`
}

// Addr returns host:port.
func (c ConnectionConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// Target returns user@host:port, used to key events and rate limits.
func (c ConnectionConfig) Target() string {
	return c.Username + "@" + c.Addr()
}

// Validate checks the config without touching the network.
func (c ConnectionConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is empty")
	}
	if c.Port == 0 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if c.Username == "" {
		return fmt.Errorf("username is empty")
	}
	if !c.AuthType.IsValid() {
		return fmt.Errorf("unsupported auth type %q", c.AuthType)
	}
	if c.AuthType == AuthKey && c.AuthValue == "" {
		return fmt.Errorf("key auth requires a private key path")
	}
	return nil
}
