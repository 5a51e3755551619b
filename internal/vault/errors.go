package vault

import (
	"errors"
	"fmt"
)

// ErrNotExist is returned by backends and key stores for an absent name.
var ErrNotExist = errors.New("entry does not exist")

// Kind classifies vault failures.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindStorage
	KindCrypto
	KindKey
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindStorage:
		return "storage"
	case KindCrypto:
		return "crypto"
	case KindKey:
		return "key"
	}
	return "unknown"
}

// Error is returned by every Vault operation.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func (e *Error) Error() string {
	msg := "vault " + e.Op
	if e.Name != "" {
		msg += fmt.Sprintf(" %q", e.Name)
	}
	msg += ": " + e.Kind.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a vault *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.Kind == k
}
