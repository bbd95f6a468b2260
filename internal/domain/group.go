package domain

import (
	"fmt"
	"time"
)

// GroupKey identifies the unit of work for generation and dispatch.
type GroupKey struct {
	ClientKey  string
	Importance Importance
}

func (k GroupKey) String() string {
	return fmt.Sprintf("%s/%s", k.ClientKey, k.Importance)
}

// Group is a derived, never persisted, set of bulletins sharing a key.
type Group struct {
	Key     GroupKey
	Members []Bulletin
}

// IDs returns member identifiers in member order.
func (g Group) IDs() []int64 {
	ids := make([]int64, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Numbers returns member bulletin numbers in member order.
func (g Group) Numbers() []string {
	numbers := make([]string, len(g.Members))
	for i, m := range g.Members {
		numbers[i] = m.Gazette.BulletinNumber
	}
	return numbers
}

// Representative returns the bulletin number recorded in the outcome log.
func (g Group) Representative() string {
	if len(g.Members) == 0 {
		return ""
	}
	return g.Members[0].Gazette.BulletinNumber
}

// Artifact returns the artifact shared by the members, if any.
func (g Group) Artifact() *Artifact {
	for _, m := range g.Members {
		if m.Artifact != nil {
			return m.Artifact
		}
	}
	return nil
}

// CheckAdvance fails with ErrStaleGroup naming the first member whose
// stage cannot move to the target stage.
func (g Group) CheckAdvance(to Stage) error {
	for _, m := range g.Members {
		if from := m.Stage(); !CanAdvance(from, to) {
			return fmt.Errorf("%w: bulletin %d is %s, cannot become %s", ErrStaleGroup, m.ID, from, to)
		}
	}
	return nil
}

// OutcomeStatus classifies a single dispatch attempt.
type OutcomeStatus string

const (
	OutcomeSent        OutcomeStatus = "sent"
	OutcomeFailed      OutcomeStatus = "failed"
	OutcomeNoRecipient OutcomeStatus = "no_recipient"
	OutcomeNoArtifact  OutcomeStatus = "no_artifact"
)

// OutcomeLogEntry is one append-only audit row per dispatch attempt.
type OutcomeLogEntry struct {
	ID             string
	ClientKey      string
	Email          string
	Timestamp      time.Time
	Status         OutcomeStatus
	Error          string
	BulletinNumber string
	Importance     Importance
}
