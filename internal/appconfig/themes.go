package appconfig

import "sort"

// Theme maps terminal palette slots to colors.
type Theme map[string]string

var themes = map[string]Theme{
	"dark": {
		"background": "#1e1e1e", "foreground": "#d4d4d4", "cursor": "#d4d4d4", "selection": "#264f78",
		"black": "#1e1e1e", "red": "#f44747", "green": "#608b4e", "yellow": "#dcdcaa",
		"blue": "#569cd6", "magenta": "#c586c0", "cyan": "#4ec9b0", "white": "#d4d4d4",
		"brightBlack": "#808080", "brightRed": "#f44747", "brightGreen": "#b5cea8", "brightYellow": "#dcdcaa",
		"brightBlue": "#9cdcfe", "brightMagenta": "#c586c0", "brightCyan": "#4ec9b0", "brightWhite": "#ffffff",
	},
	"light": {
		"background": "#ffffff", "foreground": "#323232", "cursor": "#323232", "selection": "#add6ff",
		"black": "#000000", "red": "#cd3131", "green": "#00bc00", "yellow": "#949800",
		"blue": "#0451a5", "magenta": "#bc05bc", "cyan": "#0598bc", "white": "#555555",
		"brightBlack": "#666666", "brightRed": "#cd3131", "brightGreen": "#14ce14", "brightYellow": "#b5ba00",
		"brightBlue": "#0451a5", "brightMagenta": "#bc05bc", "brightCyan": "#0598bc", "brightWhite": "#a5a5a5",
	},
	"dracula": {
		"background": "#282a36", "foreground": "#f8f8f2", "cursor": "#f8f8f2", "selection": "#44475a",
		"black": "#21222c", "red": "#ff5555", "green": "#50fa7b", "yellow": "#f1fa8c",
		"blue": "#bd93f9", "magenta": "#ff79c6", "cyan": "#8be9fd", "white": "#f8f8f2",
		"brightBlack": "#6272a4", "brightRed": "#ff6e6e", "brightGreen": "#69ff94", "brightYellow": "#ffffa5",
		"brightBlue": "#d6acff", "brightMagenta": "#ff92df", "brightCyan": "#a4ffff", "brightWhite": "#ffffff",
	},
}

// ThemeNames returns the built-in theme names in order.
func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for n := range themes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// GetTheme returns a copy of the named palette.
func GetTheme(name string) (Theme, bool) {
	t, ok := themes[name]
	if !ok {
		return nil, false
	}
	out := make(Theme, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out, true
}
