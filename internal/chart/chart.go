// Package chart validates user-submitted chart definitions against the
// field set of their bound dataset and normalizes them for persistence.
// Both workflow flavors share this one validator; the allowed kind set is
// the only per-flavor difference.
package chart

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"painel/internal/storage"
	"painel/internal/tabular"
)

// ErrTooManySeries indicates a pie chart with more than one series.
var ErrTooManySeries = errors.New("graficos de pizza aceitam apenas uma serie")

// ErrColorCountMismatch indicates an explicit color list whose length does
// not match the series count.
var ErrColorCountMismatch = errors.New("quantidade de cores nao corresponde ao numero de series")

// ErrNoSeries indicates a payload with no usable value series.
var ErrNoSeries = errors.New("informe ao menos uma serie de valores")

// ErrMissingLabelKey indicates a payload with no label/dimension field.
var ErrMissingLabelKey = errors.New("informe o campo de rotulo")

// UnknownFieldError names payload fields absent from the bound dataset.
type UnknownFieldError struct {
	Fields []string
}

func (e *UnknownFieldError) Error() string {
	return "campos inexistentes no dataset: " + strings.Join(e.Fields, ", ")
}

// UnknownKindError indicates a chart kind outside the workflow type's
// allowed set.
type UnknownKindError struct {
	Kind string
	Tipo string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("tipo de grafico %q invalido para workflow %s", e.Kind, e.Tipo)
}

// Allowed chart kinds per workflow type.
var (
	kindsAnaliseJP = []string{"bar", "line", "pie", "doughnut", "radar"}
	kindsBalancete = []string{
		"bar", "bar-horizontal", "line", "area", "pie", "doughnut",
		"radar", "scatter", "heatmap", "gauge", "table",
	}
)

// AllowedKinds returns the chart kinds a workflow type accepts.
func AllowedKinds(tipo string) []string {
	if tipo == storage.TipoAnaliseJP {
		return kindsAnaliseJP
	}
	return kindsBalancete
}

func kindAllowed(tipo, kind string) bool {
	for _, k := range AllowedKinds(tipo) {
		if k == kind {
			return true
		}
	}
	return false
}

// Payload is the wire shape of a chart create/update request. Series
// accepts either plain field-name strings or {value_key,label,color}
// objects; both arrive here as any.
type Payload struct {
	Nome       string         `json:"nome"`
	ChartType  string         `json:"chart_type"`
	SourceType string         `json:"source_type"`
	SourceID   string         `json:"source_id"`
	LabelKey   string         `json:"label_key"`
	Series     []any          `json:"series"`
	Colors     []string       `json:"colors"`
	Options    map[string]any `json:"options"`
}

// Build validates payload against the dataset's fields and produces a
// normalized definition ready for persistence. fields is the set of field
// names the payload may reference, taken from the currently latest dataset
// of the payload's source; palette supplies fallback series colors and may
// be empty.
func Build(p Payload, tipo string, fields []string, palette []string) (storage.Chart, error) {
	kind := strings.TrimSpace(p.ChartType)
	if !kindAllowed(tipo, kind) {
		return storage.Chart{}, &UnknownKindError{Kind: kind, Tipo: tipo}
	}

	labelKey := strings.TrimSpace(p.LabelKey)
	if labelKey == "" {
		return storage.Chart{}, ErrMissingLabelKey
	}

	series := extractSeries(p.Series)
	if len(series) == 0 {
		return storage.Chart{}, ErrNoSeries
	}
	if kind == "pie" && len(series) > 1 {
		return storage.Chart{}, ErrTooManySeries
	}

	if missing := missingFields(labelKey, series, fields); len(missing) > 0 {
		return storage.Chart{}, &UnknownFieldError{Fields: missing}
	}

	if len(p.Colors) > 0 && len(p.Colors) != len(series) {
		return storage.Chart{}, ErrColorCountMismatch
	}
	assignColors(series, p.Colors, palette)

	nome := strings.TrimSpace(p.Nome)
	if nome == "" {
		nome = autoName(p.SourceID, kind)
	}

	return storage.Chart{
		Nome:       nome,
		ChartType:  kind,
		SourceType: tipo,
		SourceID:   strings.TrimSpace(p.SourceID),
		LabelKey:   labelKey,
		Series:     series,
		Options:    buildOptions(p.Options, series),
	}, nil
}

// extractSeries normalizes the two accepted series forms. Entries without
// a usable field key are dropped; duplicate keys collapse to the first.
func extractSeries(raw []any) []storage.ChartSeries {
	out := make([]storage.ChartSeries, 0, len(raw))
	seen := map[string]struct{}{}
	add := func(s storage.ChartSeries) {
		s.ValueKey = strings.TrimSpace(s.ValueKey)
		if s.ValueKey == "" {
			return
		}
		if _, dup := seen[s.ValueKey]; dup {
			return
		}
		seen[s.ValueKey] = struct{}{}
		if strings.TrimSpace(s.Label) == "" {
			s.Label = tabular.FieldLabel(s.ValueKey)
		}
		out = append(out, s)
	}

	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			add(storage.ChartSeries{ValueKey: v})
		case map[string]any:
			add(storage.ChartSeries{
				ValueKey: stringAt(v, "value_key"),
				Label:    stringAt(v, "label"),
				Color:    stringAt(v, "color"),
			})
		}
	}
	return out
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func missingFields(labelKey string, series []storage.ChartSeries, fields []string) []string {
	known := map[string]struct{}{}
	for _, f := range fields {
		known[f] = struct{}{}
	}

	missing := map[string]struct{}{}
	if _, ok := known[labelKey]; !ok {
		missing[labelKey] = struct{}{}
	}
	for _, s := range series {
		if _, ok := known[s.ValueKey]; !ok {
			missing[s.ValueKey] = struct{}{}
		}
	}
	out := make([]string, 0, len(missing))
	for f := range missing {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// assignColors fills each series' color: explicit list first, then the
// series' own color, then the palette cycled in order, then a formulaic
// hue sequence. Stored colors are uppercase.
func assignColors(series []storage.ChartSeries, explicit, palette []string) {
	for i := range series {
		c := series[i].Color
		if len(explicit) == len(series) {
			c = explicit[i]
		}
		if strings.TrimSpace(c) == "" {
			if len(palette) > 0 {
				c = palette[i%len(palette)]
			} else {
				c = fallbackColor(i)
			}
		}
		series[i].Color = strings.ToUpper(strings.TrimSpace(c))
	}
}

// fallbackColor derives a stable color per series index using golden-angle
// hue stepping, so unpaletted charts still get well-separated colors.
func fallbackColor(i int) string {
	h := math.Mod(float64(i)*137.508, 360)
	r, g, b := hslToRGB(h, 0.65, 0.52)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return uint8((r + m) * 255), uint8((g + m) * 255), uint8((b + m) * 255)
}

// buildOptions copies recognized UI hints from the raw options bag and
// attaches the series_colors lookup.
func buildOptions(raw map[string]any, series []storage.ChartSeries) map[string]any {
	opts := map[string]any{}
	for _, key := range []string{"orientation", "stacked", "fill_mode", "tension"} {
		if v, ok := raw[key]; ok {
			opts[key] = v
		}
	}
	colors := map[string]string{}
	for _, s := range series {
		colors[s.ValueKey] = s.Color
	}
	opts["series_colors"] = colors
	return opts
}

func autoName(sourceID, kind string) string {
	src := strings.TrimSpace(sourceID)
	if src == "" {
		return "Grafico " + kind
	}
	return fmt.Sprintf("%s - %s", displayName(src), kind)
}

func displayName(slug string) string {
	parts := strings.Split(slug, "_")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, strings.ToUpper(p[:1])+strings.ToLower(p[1:]))
	}
	if len(out) == 0 {
		return slug
	}
	return strings.Join(out, " ")
}

// Duplicate deep-copies a persisted chart under a copy-suffixed name, with
// identity fields cleared for re-insertion.
func Duplicate(c storage.Chart) storage.Chart {
	cp := c
	cp.ID = 0
	cp.Nome = c.Nome + " (cópia)"
	cp.Series = append([]storage.ChartSeries(nil), c.Series...)
	cp.Options = map[string]any{}
	for k, v := range c.Options {
		if colors, ok := v.(map[string]string); ok {
			cc := map[string]string{}
			for ck, cv := range colors {
				cc[ck] = cv
			}
			cp.Options[k] = cc
			continue
		}
		cp.Options[k] = v
	}
	return cp
}
