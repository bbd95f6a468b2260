package report

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/image/font/sfnt"
)

//go:embed fonts/DejaVuSansCondensed.ttf fonts/DejaVuSansCondensed-Bold.ttf
var embeddedFonts embed.FS

// ErrUnsupportedText marks field values the report font has no glyphs for.
var ErrUnsupportedText = errors.New("text not representable in report font")

// FontSet is the UTF-8 TrueType pair a report is rendered with.
type FontSet struct {
	Regular []byte
	Bold    []byte
	glyphs  *sfnt.Font
}

// DefaultFonts returns the embedded DejaVu Sans Condensed pair. It covers
// Latin, Greek and Cyrillic scripts.
func DefaultFonts() (*FontSet, error) {
	regular, err := embeddedFonts.ReadFile("fonts/DejaVuSansCondensed.ttf")
	if err != nil {
		return nil, fmt.Errorf("read embedded font: %w", err)
	}
	bold, err := embeddedFonts.ReadFile("fonts/DejaVuSansCondensed-Bold.ttf")
	if err != nil {
		return nil, fmt.Errorf("read embedded bold font: %w", err)
	}
	return NewFontSet(regular, bold)
}

// LoadFonts reads a TTF pair from disk. An empty boldPath reuses the
// regular face for headings.
func LoadFonts(regularPath, boldPath string) (*FontSet, error) {
	regular, err := os.ReadFile(regularPath)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", regularPath, err)
	}
	bold := regular
	if boldPath != "" {
		if bold, err = os.ReadFile(boldPath); err != nil {
			return nil, fmt.Errorf("read font %s: %w", boldPath, err)
		}
	}
	return NewFontSet(regular, bold)
}

// NewFontSet parses the regular face for glyph coverage checks.
func NewFontSet(regular, bold []byte) (*FontSet, error) {
	glyphs, err := sfnt.Parse(regular)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	if _, err := sfnt.Parse(bold); err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	return &FontSet{Regular: regular, Bold: bold, glyphs: glyphs}, nil
}

// Missing returns the distinct runes of text the font cannot draw, sorted.
func (f *FontSet) Missing(text string) []rune {
	var buf sfnt.Buffer
	seen := map[rune]bool{}
	var missing []rune
	for _, r := range text {
		if unicode.IsControl(r) || seen[r] {
			continue
		}
		seen[r] = true
		idx, err := f.glyphs.GlyphIndex(&buf, r)
		if err != nil || idx == 0 {
			missing = append(missing, r)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

// check reports every labelled value with characters the font lacks.
func (f *FontSet) check(values map[string]string) error {
	var problems []string
	for label, value := range values {
		if missing := f.Missing(value); len(missing) > 0 {
			problems = append(problems, fmt.Sprintf("%s %q", label, string(missing)))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrUnsupportedText, strings.Join(problems, ", "))
}
