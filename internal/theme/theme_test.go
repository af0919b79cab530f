package theme

import (
	"sort"
	"testing"
)

func TestGet_FallsBackToDefault(t *testing.T) {
	t.Parallel()

	if Get("dark").Name != "dark" {
		t.Fatalf("known theme not returned")
	}
	if Get("inexistente").Name != DefaultName {
		t.Fatalf("unknown theme should fall back to %q", DefaultName)
	}
	if Get("").Name != DefaultName {
		t.Fatalf("empty name should fall back to %q", DefaultName)
	}
}

func TestKnown(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"dark", "light", "neon", "futurist"} {
		if !Known(name) {
			t.Fatalf("theme %q missing", name)
		}
	}
	if Known("solarized") {
		t.Fatalf("unregistered theme reported known")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	names := Names()
	sort.Strings(names)
	want := []string{"dark", "futurist", "light", "neon"}
	if len(names) != len(want) {
		t.Fatalf("names = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("names = %v, want %v", names, want)
		}
	}
}

func TestPalettesNonEmpty(t *testing.T) {
	t.Parallel()

	for _, name := range Names() {
		if len(Get(name).Palette) == 0 {
			t.Fatalf("theme %q has no palette", name)
		}
	}
}
