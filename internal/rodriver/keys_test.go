package rodriver

import (
	"testing"

	"github.com/go-rod/rod/lib/input"
)

func TestSplitKeys(t *testing.T) {
	got := splitKeys([]string{"user", "\tpass{Enter}", "{Nope}x"})
	want := []keystroke{
		{text: "user"},
		{key: input.Tab},
		{text: "pass"},
		{key: input.Enter},
		{text: "{Nope}x"},
	}
	if len(got) != len(want) {
		t.Fatalf("splitKeys() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("keystroke %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSplitKeys_UnclosedBrace(t *testing.T) {
	got := splitKeys([]string{"a{Enter"})
	if len(got) != 1 || got[0].text != "a{Enter" {
		t.Errorf("splitKeys() = %+v", got)
	}
}

func TestMapKey(t *testing.T) {
	if k, ok := mapKey("ArrowDown"); !ok || k != input.ArrowDown {
		t.Errorf("mapKey(ArrowDown) = %v, %v", k, ok)
	}
	if _, ok := mapKey("a"); ok {
		t.Error("single characters are text, not named keys")
	}
}

func TestParseFlags(t *testing.T) {
	got, err := parseFlags(`--window-size=1280,800 --lang="en US" --mute-audio`)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d flags, want 3", len(got))
	}
	if got[0].name != "window-size" || len(got[0].values) != 1 || got[0].values[0] != "1280,800" {
		t.Errorf("flag 0 = %+v", got[0])
	}
	if got[1].name != "lang" || got[1].values[0] != "en US" {
		t.Errorf("flag 1 = %+v", got[1])
	}
	if got[2].name != "mute-audio" || got[2].values != nil {
		t.Errorf("flag 2 = %+v", got[2])
	}

	if _, err := parseFlags(`--lang="unterminated`); err == nil {
		t.Error("unterminated quote parsed without error")
	}
}
