// Package theme holds the UI theme registry and the chart palette each theme
// contributes. The rendering layer consumes the CSS class sets; the chart
// validator only cares about Palette.
package theme

// Theme is one named visual preset.
type Theme struct {
	Name string
	// Palette is the ordered list of chart series colors for this theme.
	Palette []string
}

// DefaultName is used when a user has no stored preference or names an
// unknown theme.
const DefaultName = "futurist"

var themes = map[string]Theme{
	"dark": {
		Name:    "dark",
		Palette: []string{"#60A5FA", "#F87171", "#34D399", "#FBBF24", "#A78BFA", "#F472B6"},
	},
	"light": {
		Name:    "light",
		Palette: []string{"#2563EB", "#DC2626", "#059669", "#D97706", "#7C3AED", "#DB2777"},
	},
	"neon": {
		Name:    "neon",
		Palette: []string{"#22C55E", "#A855F7", "#06B6D4", "#EAB308", "#EC4899", "#84CC16"},
	},
	"futurist": {
		Name:    "futurist",
		Palette: []string{"#38BDF8", "#A855F7", "#22D3EE", "#F472B6", "#FACC15", "#34D399"},
	},
}

// Get returns the named theme, falling back to the default for unknown names.
func Get(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return themes[DefaultName]
}

// Known reports whether name is a registered theme.
func Known(name string) bool {
	_, ok := themes[name]
	return ok
}

// Names lists the registered theme names. Order is unspecified.
func Names() []string {
	out := make([]string, 0, len(themes))
	for n := range themes {
		out = append(out, n)
	}
	return out
}
