package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"BulletinDispatch/internal/domain"
)

// BulletinFilter narrows bulletin reads. Nil fields are not filtered on.
type BulletinFilter struct {
	Generated      *bool
	Sent           *bool
	Importance     *domain.Importance
	ExcludePending bool
	ClientKey      string
}

// BulletinRepository is the persistent bulletin store.
type BulletinRepository interface {
	ListBulletins(ctx context.Context, filter BulletinFilter) ([]domain.Bulletin, error)
	// MarkGenerated flags exactly the member IDs of key in one transaction.
	MarkGenerated(ctx context.Context, key domain.GroupKey, ids []int64, artifact domain.Artifact, at time.Time) error
	// MarkSent flags exactly the member IDs in one transaction.
	MarkSent(ctx context.Context, ids []int64, at time.Time) error
}

// ClientDirectory resolves a client key to its directory record.
type ClientDirectory interface {
	LookupClient(ctx context.Context, key string) (domain.Client, bool, error)
}

// ErrArtifactExists is returned by ArtifactStore.Create for a taken name.
var ErrArtifactExists = errors.New("artifact already exists")

// ArtifactStore keeps generated report files.
type ArtifactStore interface {
	// Create writes a new artifact and fails if the name is taken.
	Create(ctx context.Context, name string, write func(io.Writer) error) (domain.Artifact, error)
	Exists(ctx context.Context, name string) (bool, error)
	Open(ctx context.Context, artifact domain.Artifact) (io.ReadCloser, error)
	Remove(ctx context.Context, artifact domain.Artifact) error
}

// ReportRenderer turns one group into report bytes.
type ReportRenderer interface {
	Render(w io.Writer, client domain.Client, group domain.Group, at time.Time) error
}

// Attachment is the single binary part of an outgoing message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a multipart plain+rich email.
type Message struct {
	To         string
	Subject    string
	PlainBody  string
	HTMLBody   string
	Attachment Attachment
}

// Mailer submits messages to the mail transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// OutcomeLog is the append-only dispatch audit trail.
type OutcomeLog interface {
	Append(ctx context.Context, entry domain.OutcomeLogEntry) error
	List(ctx context.Context, clientKey string) ([]domain.OutcomeLogEntry, error)
}

// JobLocker guarantees a single running job per name against one store.
type JobLocker interface {
	Acquire(ctx context.Context, job string) (release func(), err error)
}

// Alerter raises operator-visible alarms.
type Alerter interface {
	Alert(ctx context.Context, message string) error
}
