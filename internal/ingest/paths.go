package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// SanitizeFilename reduces an arbitrary client filename to a safe single
// path component: accents stripped, path separators and control characters
// replaced, whitespace collapsed to underscores. Returns "arquivo" when
// nothing survives.
func SanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = stripAccents(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._-")
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	if out == "" {
		return "arquivo"
	}
	return out
}

func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// storedName builds the on-disk filename. The timestamp plus a short uuid
// prefix keeps concurrent uploads of the same file from colliding.
func storedName(workflowID int64, categoria, original string, now time.Time) string {
	uid := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	cat := categoria
	if cat == "" {
		cat = "balancete"
	}
	return fmt.Sprintf("%d_%s_%s_%s_%s",
		workflowID, cat, now.UTC().Format("20060102T150405"), uid, SanitizeFilename(original))
}

// uploadDir is the directory an upload's file lives in, relative layout
// {root}/analise_uploads/{workflow_id}/{categoria}. Balancete uploads use
// the fixed "balancete" subdirectory.
func uploadDir(root string, workflowID int64, categoria string) string {
	sub := categoria
	if sub == "" {
		sub = "balancete"
	}
	return filepath.Join(root, "analise_uploads", fmt.Sprint(workflowID), sub)
}
