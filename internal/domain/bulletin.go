package domain

import (
	"fmt"
	"strings"
	"time"
)

// Importance is the human-assigned severity of a bulletin.
type Importance string

const (
	ImportancePending Importance = "Pending"
	ImportanceLow     Importance = "Low"
	ImportanceMedium  Importance = "Medium"
	ImportanceHigh    Importance = "High"
)

// Importances lists every valid value, Pending first.
var Importances = []Importance{ImportancePending, ImportanceLow, ImportanceMedium, ImportanceHigh}

func (i Importance) String() string { return string(i) }

// IsValid reports whether i is one of the known severities.
func (i Importance) IsValid() bool {
	switch i {
	case ImportancePending, ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// Classified reports whether a human has assigned a real severity.
func (i Importance) Classified() bool {
	return i.IsValid() && i != ImportancePending
}

// Rank orders severities from Pending (0) to High (3).
func (i Importance) Rank() int {
	switch i {
	case ImportanceLow:
		return 1
	case ImportanceMedium:
		return 2
	case ImportanceHigh:
		return 3
	default:
		return 0
	}
}

// ParseImportance maps operator input to an Importance, case-insensitively.
func ParseImportance(value string) (Importance, error) {
	v := strings.TrimSpace(value)
	for _, imp := range Importances {
		if strings.EqualFold(v, string(imp)) {
			return imp, nil
		}
	}
	return "", fmt.Errorf("unknown importance %q", value)
}

// Gazette holds the verbatim fields copied from the trademark gazette.
type Gazette struct {
	BulletinNumber string
	BulletinDate   string
	OrderNumber    string
	Applicant      string
	Agent          string
	FileNumber     string
	Class          string
	GuardedMark    string
	PublishedMark  string
	ClassList      string
}

// Bulletin is one gazette entry that may conflict with a client's mark.
type Bulletin struct {
	ID          int64
	ClientKey   string
	Gazette     Gazette
	Importance  Importance
	Generated   bool
	Sent        bool
	Artifact    *Artifact
	GeneratedAt *time.Time
	SentAt      *time.Time
}

// Artifact points at the report file a bulletin was generated into.
type Artifact struct {
	Name string
	Path string
}

// Stage returns the lifecycle position derived from the persisted flags.
func (b Bulletin) Stage() Stage {
	switch {
	case b.Sent:
		return StageSent
	case b.Generated:
		return StageGenerated
	case b.Importance.Classified():
		return StageClassified
	default:
		return StagePending
	}
}

// ArtifactName returns the artifact name or an empty string.
func (b Bulletin) ArtifactName() string {
	if b.Artifact == nil {
		return ""
	}
	return b.Artifact.Name
}

// Stage enumerates the per-bulletin lifecycle.
type Stage string

const (
	StagePending    Stage = "pending"
	StageClassified Stage = "classified"
	StageGenerated  Stage = "generated"
	StageSent       Stage = "sent"
)

// CanAdvance reports whether from -> to is a forward transition owned by this
// module. Pending -> Classified happens outside and is rejected here.
func CanAdvance(from, to Stage) bool {
	switch from {
	case StageClassified:
		return to == StageGenerated
	case StageGenerated:
		return to == StageSent
	default:
		return false
	}
}

// Client is a brand owner from the client directory.
type Client struct {
	Key      string
	Email    string
	Phone    string
	Address  string
	City     string
	Province string
	TaxID    string
}

// HasEmail reports whether the client can receive reports.
func (c Client) HasEmail() bool {
	return strings.TrimSpace(c.Email) != ""
}
