package rodriver

import (
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
)

// keystroke is either literal text or a single named key.
type keystroke struct {
	text string
	key  input.Key
}

func (k keystroke) named() bool { return k.text == "" }

// splitKeys turns key sequences into keystrokes. Named keys are written in
// braces ("{Enter}", "{ArrowDown}"); newline and tab press Enter and Tab.
// Unknown brace names are typed literally.
func splitKeys(keys []string) []keystroke {
	var out []keystroke
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, keystroke{text: buf.String()})
			buf.Reset()
		}
	}
	press := func(k input.Key) {
		flush()
		out = append(out, keystroke{key: k})
	}

	for _, s := range keys {
		for len(s) > 0 {
			switch s[0] {
			case '\n':
				press(input.Enter)
				s = s[1:]
				continue
			case '\t':
				press(input.Tab)
				s = s[1:]
				continue
			case '{':
				if end := strings.IndexByte(s, '}'); end > 1 {
					if k, ok := mapKey(s[1:end]); ok {
						press(k)
						s = s[end+1:]
						continue
					}
				}
			}
			buf.WriteByte(s[0])
			s = s[1:]
		}
	}
	flush()
	return out
}

// typeKeys sends keys to the focused element of page.
func typeKeys(page *rod.Page, keys []string) error {
	for _, k := range splitKeys(keys) {
		var err error
		if k.named() {
			err = page.Keyboard.Press(k.key)
		} else {
			err = page.InsertText(k.text)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mapKey converts a key name to a rod keyboard key.
func mapKey(name string) (input.Key, bool) {
	switch name {
	case "Enter":
		return input.Enter, true
	case "Tab":
		return input.Tab, true
	case "Escape":
		return input.Escape, true
	case "Backspace":
		return input.Backspace, true
	case "Delete":
		return input.Delete, true
	case "ArrowUp":
		return input.ArrowUp, true
	case "ArrowDown":
		return input.ArrowDown, true
	case "ArrowLeft":
		return input.ArrowLeft, true
	case "ArrowRight":
		return input.ArrowRight, true
	case "Home":
		return input.Home, true
	case "End":
		return input.End, true
	case "PageUp":
		return input.PageUp, true
	case "PageDown":
		return input.PageDown, true
	case "Space":
		return input.Space, true
	}
	return 0, false
}
