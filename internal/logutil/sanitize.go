package logutil

import (
	"strings"
	"unicode"
)

// maxLogValueLen caps a single user-provided value in a log line.
const maxLogValueLen = 256

// SanitizeForLog flattens user-provided strings (hosts, usernames, session
// and key names) before they are logged, so a crafted value cannot forge
// extra log lines. Line breaks and tabs become spaces, other control
// characters are dropped and overlong values are cut.
func SanitizeForLog(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	if len(s) > maxLogValueLen {
		cut := maxLogValueLen
		for cut > 0 && !utf8RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
