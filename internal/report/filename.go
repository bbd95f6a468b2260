package report

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"BulletinDispatch/internal/domain"
)

const (
	filenameExt = ".pdf"
	codeDigits  = 6
)

var filenamePattern = regexp.MustCompile(`^(.+)-(\d{4}) - Report (.*) - (Pending|Low|Medium|High) - (\d{6})\.pdf$`)

// Filename is the parsed form of a report artifact name.
type Filename struct {
	Month      string
	Year       int
	ClientName string
	Importance domain.Importance
	Code       string
}

// String renders the name as
// "<Month-Year> - Report <client> - <importance> - <code>.pdf".
func (f Filename) String() string {
	name := fmt.Sprintf("%s-%d - Report %s - %s - %s%s",
		f.Month, f.Year, f.ClientName, f.Importance, f.Code, filenameExt)
	return Sanitize(name)
}

// NewFilename builds the artifact name for a group at the given time.
func NewFilename(locale Locale, key domain.GroupKey, at time.Time, code string) Filename {
	return Filename{
		Month:      locale.Month(at.Month()),
		Year:       at.Year(),
		ClientName: Sanitize(key.ClientKey),
		Importance: key.Importance,
		Code:       code,
	}
}

// ParseFilename recovers the parts of a name produced by Filename.String.
func ParseFilename(name string) (Filename, error) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return Filename{}, fmt.Errorf("not a report filename: %q", name)
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return Filename{}, fmt.Errorf("parse year %q: %w", m[2], err)
	}
	imp, err := domain.ParseImportance(m[4])
	if err != nil {
		return Filename{}, err
	}
	return Filename{
		Month:      m[1],
		Year:       year,
		ClientName: m[3],
		Importance: imp,
		Code:       m[5],
	}, nil
}

// Sanitize keeps letters, digits, space, '-', '_' and '.'.
func Sanitize(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// RandomCode returns a zero-padded random 6-digit code.
func RandomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("random code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}
