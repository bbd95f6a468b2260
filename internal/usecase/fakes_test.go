package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"BulletinDispatch/internal/domain"
	"BulletinDispatch/internal/ports"
)

type memRepo struct {
	mu          sync.Mutex
	rows        map[int64]domain.Bulletin
	generateErr map[domain.GroupKey]error
	sentErr     error
	markedSent  [][]int64
}

func newMemRepo(rows ...domain.Bulletin) *memRepo {
	r := &memRepo{rows: map[int64]domain.Bulletin{}, generateErr: map[domain.GroupKey]error{}}
	for _, b := range rows {
		r.rows[b.ID] = b
	}
	return r
}

func (r *memRepo) ListBulletins(_ context.Context, f ports.BulletinFilter) ([]domain.Bulletin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Bulletin
	for _, b := range r.rows {
		if f.Generated != nil && b.Generated != *f.Generated {
			continue
		}
		if f.Sent != nil && b.Sent != *f.Sent {
			continue
		}
		if f.Importance != nil && b.Importance != *f.Importance {
			continue
		}
		if f.ExcludePending && !b.Importance.Classified() {
			continue
		}
		if f.ClientKey != "" && b.ClientKey != f.ClientKey {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memRepo) MarkGenerated(_ context.Context, key domain.GroupKey, ids []int64, artifact domain.Artifact, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.generateErr[key]; err != nil {
		return err
	}
	for _, id := range ids {
		b := r.rows[id]
		if b.ClientKey != key.ClientKey || b.Importance != key.Importance || !domain.CanAdvance(b.Stage(), domain.StageGenerated) {
			return fmt.Errorf("%w: bulletin %d", domain.ErrStaleGroup, id)
		}
	}
	for _, id := range ids {
		b := r.rows[id]
		b.Generated = true
		a := artifact
		b.Artifact = &a
		t := at
		b.GeneratedAt = &t
		r.rows[id] = b
	}
	return nil
}

func (r *memRepo) MarkSent(_ context.Context, ids []int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sentErr != nil {
		return r.sentErr
	}
	for _, id := range ids {
		b := r.rows[id]
		if !domain.CanAdvance(b.Stage(), domain.StageSent) {
			return fmt.Errorf("%w: bulletin %d", domain.ErrStaleGroup, id)
		}
	}
	for _, id := range ids {
		b := r.rows[id]
		b.Sent = true
		t := at
		b.SentAt = &t
		r.rows[id] = b
	}
	r.markedSent = append(r.markedSent, append([]int64(nil), ids...))
	return nil
}

func (r *memRepo) get(id int64) domain.Bulletin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *memRepo) set(b domain.Bulletin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[b.ID] = b
}

type memClients map[string]domain.Client

func (m memClients) LookupClient(_ context.Context, key string) (domain.Client, bool, error) {
	c, ok := m[key]
	return c, ok, nil
}

type memArtifacts struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{files: map[string][]byte{}}
}

func (m *memArtifacts) Create(_ context.Context, name string, write func(io.Writer) error) (domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[name]; ok {
		return domain.Artifact{}, ports.ErrArtifactExists
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return domain.Artifact{}, err
	}
	m.files[name] = buf.Bytes()
	return domain.Artifact{Name: name, Path: "/reports/" + name}, nil
}

func (m *memArtifacts) Exists(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *memArtifacts) Open(_ context.Context, a domain.Artifact) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[a.Name]
	if !ok {
		return nil, fmt.Errorf("open %s: %w", a.Name, os.ErrNotExist)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memArtifacts) Remove(_ context.Context, a domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, a.Name)
	return nil
}

func (m *memArtifacts) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for n := range m.files {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// stubRenderer writes member numbers and fails for configured clients.
type stubRenderer struct {
	failFor map[string]bool
}

func (s stubRenderer) Render(w io.Writer, client domain.Client, group domain.Group, _ time.Time) error {
	if s.failFor[client.Key] {
		return errors.New("renderer exploded")
	}
	_, err := fmt.Fprintf(w, "%s %s %v", client.Key, group.Key.Importance, group.Numbers())
	return err
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []ports.Message
	failFor map[string]error
}

func (f *fakeMailer) Send(ctx context.Context, msg ports.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[msg.To]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type memOutcomes struct {
	mu      sync.Mutex
	entries []domain.OutcomeLogEntry
}

func (m *memOutcomes) Append(_ context.Context, e domain.OutcomeLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

func (m *memOutcomes) List(_ context.Context, clientKey string) ([]domain.OutcomeLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OutcomeLogEntry
	for _, e := range m.entries {
		if clientKey == "" || e.ClientKey == clientKey {
			out = append(out, e)
		}
	}
	return out, nil
}

type recordingAlerter struct {
	mu       sync.Mutex
	messages []string
}

func (a *recordingAlerter) Alert(_ context.Context, message string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
	return nil
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string) (func(), error) {
	return nil, domain.ErrJobRunning
}

func sequentialCodes() func() (string, error) {
	var mu sync.Mutex
	n := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%06d", n), nil
	}
}

func fixedNow() time.Time {
	return time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
}

func bulletin(id int64, client string, imp domain.Importance, number string) domain.Bulletin {
	return domain.Bulletin{
		ID:         id,
		ClientKey:  client,
		Importance: imp,
		Gazette:    domain.Gazette{BulletinNumber: number},
	}
}
