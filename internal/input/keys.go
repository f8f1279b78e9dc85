package input

import "strings"

// keyAliases maps the key names vision models tend to emit onto the
// canonical names the injection layer understands. Canonical names map to
// themselves so normalization is idempotent; the executor normalizes
// before routing and the privileged service normalizes again on receipt.
var keyAliases = map[string]string{
	"enter":  "enter",
	"return": "enter",

	"escape": "esc",
	"esc":    "esc",

	"tab":      "tab",
	"space":    "space",
	"spacebar": "space",

	"backspace": "backspace",
	"delete":    "delete",
	"del":       "delete",

	"up":          "up",
	"arrowup":     "up",
	"arrow_up":    "up",
	"down":        "down",
	"arrowdown":   "down",
	"arrow_down":  "down",
	"left":        "left",
	"arrowleft":   "left",
	"arrow_left":  "left",
	"right":       "right",
	"arrowright":  "right",
	"arrow_right": "right",

	"cmd":     "cmd",
	"command": "cmd",
	"win":     "cmd",
	"super":   "cmd",
	"meta":    "cmd",

	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",

	"pageup":    "pageup",
	"page_up":   "pageup",
	"pgup":      "pageup",
	"pagedown":  "pagedown",
	"page_down": "pagedown",
	"pgdn":      "pagedown",
	"home":      "home",
	"end":       "end",
}

// NormalizeKey maps a model-supplied key name to its canonical injection
// name, falling back to the literal lowercase name when unmapped.
func NormalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	if canonical, ok := keyAliases[k]; ok {
		return canonical
	}
	return k
}
