package person

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/referencedata"
)

var fixedNow = time.Date(2024, time.March, 10, 9, 30, 0, 0, time.UTC)

func newTypes() *referencedata.Registry {
	return referencedata.FromSeed(referencedata.DefaultSeed())
}

func newTestBuilder(store Store, types *referencedata.Registry) *Builder {
	b := NewBuilder(store, types)
	b.now = func() time.Time { return fixedNow }
	return b
}

type recordedEvent struct {
	Type string
	Data map[string]interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, eventType string, _ string, data map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Type: eventType, Data: data})
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fakeRemote struct {
	mu      sync.Mutex
	fetched []string
	pushed  []models.Demographics
	fetch   func(ctx context.Context, identifier string) (*Person, error)
	push    models.PushResult
	pushErr error
}

func (f *fakeRemote) Fetch(ctx context.Context, identifier string) (*Person, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, identifier)
	fetch := f.fetch
	f.mu.Unlock()
	if fetch == nil {
		return nil, nil
	}
	return fetch(ctx, identifier)
}

func (f *fakeRemote) Push(_ context.Context, d models.Demographics) (models.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushed = append(f.pushed, d)
	return f.push, f.pushErr
}

type fakeLocker struct {
	mu       sync.Mutex
	busy     bool
	keys     []string
	released int
}

func (l *fakeLocker) TryLock(_ context.Context, key string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.busy {
		return nil, false, nil
	}
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, true, nil
}

type testEnv struct {
	store   *MemoryStore
	types   *referencedata.Registry
	builder *Builder
	service *Service
	events  *recordingPublisher
}

func newTestEnv(t *testing.T, remote RemoteRegistry, locker Locker) *testEnv {
	t.Helper()
	store := NewMemoryStore()
	types := newTypes()
	builder := newTestBuilder(store, types)
	events := &recordingPublisher{}
	return &testEnv{
		store:   store,
		types:   types,
		builder: builder,
		service: NewService(store, types, builder, remote, locker, events),
		events:  events,
	}
}

func (e *testEnv) create(t *testing.T, d models.Demographics) *Person {
	t.Helper()
	p, err := e.builder.Materialize(context.Background(), d)
	require.NoError(t, err)
	return p
}

func demographics(gender, given, family, nationalID string) models.Demographics {
	d := models.Demographics{
		Gender:     gender,
		BirthYear:  "1985",
		BirthMonth: "6",
		BirthDay:   "12",
		Names:      models.Names{GivenName: given, FamilyName: family},
	}
	if nationalID != "" {
		d.Patient = &models.PatientSection{Identifiers: models.StringMap{referencedata.NationalIDName: nationalID}}
	}
	return d
}
