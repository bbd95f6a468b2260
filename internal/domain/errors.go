package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrBlockedByPending   = errors.New("dispatch blocked by pending classification")
	ErrGenerationFailure  = errors.New("generation failure")
	ErrNoRecipient        = errors.New("no recipient")
	ErrNoArtifact         = errors.New("no artifact")
	ErrTransportFailure   = errors.New("transport failure")
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrStaleGroup         = errors.New("group membership changed")
	ErrJobRunning         = errors.New("job already running")
)

// BlockedError carries the generated-unsent bulletins that are still Pending.
type BlockedError struct {
	Counts map[string]int
}

func (e *BlockedError) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, len(e.Counts))
	for _, key := range e.ClientKeys() {
		parts = append(parts, fmt.Sprintf("%s=%d", key, e.Counts[key]))
	}
	return fmt.Sprintf("%s: %d record(s) [%s]", ErrBlockedByPending, e.Total(), strings.Join(parts, ", "))
}

func (e *BlockedError) Unwrap() error { return ErrBlockedByPending }

// ClientKeys returns the affected clients sorted by name.
func (e *BlockedError) ClientKeys() []string {
	keys := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Total is the number of offending records.
func (e *BlockedError) Total() int {
	total := 0
	for _, n := range e.Counts {
		total += n
	}
	return total
}

// GroupError attributes a failure kind to one group.
type GroupError struct {
	Kind error
	Key  GroupKey
	Err  error
}

func (e *GroupError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Key)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Key, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *GroupError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewGroupError wraps err with a taxonomy kind for key.
func NewGroupError(kind error, key GroupKey, err error) error {
	return &GroupError{Kind: kind, Key: key, Err: err}
}
