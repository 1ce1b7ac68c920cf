package remotesync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/registry/pkg/common/config"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/person"
	"github.com/synaptica-ai/registry/pkg/referencedata"
)

const peerRecord = `{
	"gender": "Female",
	"birth_year": 1990,
	"birth_month": "Unknown",
	"birth_day": "Unknown",
	"names": {"given_name": "Mary", "family_name": "Banda"},
	"addresses": {"city_village": "Area 25"},
	"attributes": {"occupation": "Nurse", "cell_phone_number": "0999123456", "Race": "African"},
	"patient": {"identifiers": {"National id": "P170000000013"}}
}`

type memoryJournal struct {
	mu      sync.Mutex
	entries []SyncLog
}

func (j *memoryJournal) Record(_ context.Context, entry *SyncLog) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, *entry)
	return nil
}

func (j *memoryJournal) outcomes() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.entries {
		out = append(out, e.Operation+":"+e.Outcome)
	}
	return out
}

func peerConfig(t *testing.T, rawURL string) config.SyncConfig {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	return config.SyncConfig{
		SyncEnabled: true,
		PeerHost:    u.Hostname(),
		PeerPort:    u.Port(),
		Timeout:     2 * time.Second,
	}
}

func newBuilder() (*person.Builder, *referencedata.Registry) {
	types := referencedata.FromSeed(referencedata.DefaultSeed())
	return person.NewBuilder(person.NewMemoryStore(), types), types
}

func respond(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}
}

func hang(w http.ResponseWriter, r *http.Request) {
	select {
	case <-r.Context().Done():
	case <-time.After(5 * time.Second):
	}
}

func TestDisabledClientMakesNoCalls(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cfg := peerConfig(t, srv.URL)
	cfg.SyncEnabled = false
	builder, _ := newBuilder()
	journal := &memoryJournal{}
	c := NewClient(cfg, builder, journal)

	p, err := c.Fetch(context.Background(), "P1")
	require.NoError(t, err)
	assert.Nil(t, p)

	res, err := c.Push(context.Background(), models.Demographics{Gender: "F"})
	require.NoError(t, err)
	assert.True(t, res.Empty())

	assert.Zero(t, atomic.LoadInt32(&hits))
	assert.Empty(t, journal.entries)
}

func TestClientAlwaysBoundsPeerCalls(t *testing.T) {
	builder, _ := newBuilder()
	c := NewClient(config.SyncConfig{SyncEnabled: true, PeerHost: "peer.local"}, builder, nil)
	assert.Equal(t, defaultTimeout, c.http.GetClient().Timeout)

	c = NewClient(config.SyncConfig{SyncEnabled: true, PeerHost: "peer.local", Timeout: -time.Second}, builder, nil)
	assert.Equal(t, defaultTimeout, c.http.GetClient().Timeout)
}

func TestFetchMaterializesPeerRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/people/remote_demographics", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "admin", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "Area 25,Lilongwe", r.Header.Get("X-Registry-Location"))
		assert.Equal(t, "sync-bot", r.Header.Get("X-Registry-Machine-Account"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"person":{"patient":{"identifiers":{"National id":"P170000000013"}}}}`, string(body))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"person": `+peerRecord+`, "status": "found"}`)
	}))
	defer srv.Close()

	cfg := peerConfig(t, srv.URL)
	cfg.Credentials = config.Credentials{Usernames: []string{"admin", "other"}, Passwords: []string{"secret"}}
	cfg.Location = []string{"Area 25", "Lilongwe"}
	cfg.MachineAccount = []string{"sync-bot"}
	builder, types := newBuilder()
	journal := &memoryJournal{}

	p, err := NewClient(cfg, builder, journal).Fetch(context.Background(), "P170000000013")
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, person.GenderFemale, p.Gender)
	assert.Equal(t, "Mary Banda", p.Name())
	assert.Equal(t, "??/???/1990", p.BirthdateFormatted())
	assert.Equal(t, "Nurse", p.Occupation(types))
	assert.Equal(t, map[string]string{"Cell Phone Number": "0999123456"}, p.PhoneNumbers(types))
	race, ok := p.AttributeValue(types.AttributeType("Race").ID)
	require.True(t, ok)
	assert.Equal(t, "African", race)
	require.NotNil(t, p.Patient)
	assert.Equal(t, "P170000000013", p.Patient.Identifiers[0].Identifier)

	require.Len(t, journal.entries, 1)
	entry := journal.entries[0]
	assert.Equal(t, OpFetch, entry.Operation)
	assert.Equal(t, "created", entry.Outcome)
	assert.Equal(t, p.ID, entry.PersonID)
	assert.Equal(t, "P170000000013", entry.Identifier)
	assert.Contains(t, entry.Request, "person")
	assert.Contains(t, entry.Response, "status")
}

func TestFetchByDemographicsSendsWireRecord(t *testing.T) {
	var got models.WireEnvelope
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		respond(`{"person": `+peerRecord+`}`)(w, r)
	}))
	defer srv.Close()

	builder, _ := newBuilder()
	journal := &memoryJournal{}
	c := NewClient(peerConfig(t, srv.URL), builder, journal)

	p, err := c.FetchByDemographics(context.Background(), models.Demographics{
		Gender:  "F",
		Names:   models.Names{GivenName: "Mary", FamilyName: "Banda"},
		Patient: &models.PatientSection{Identifiers: models.StringMap{"National id": "P170000000013"}},
	})
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "Female", got.Person.Gender)
	assert.Equal(t, "Mary", got.Person.Names.GivenName)
	assert.Equal(t, "Mary Banda", p.Name())
	assert.Equal(t, []string{"fetch:created"}, journal.outcomes())
	assert.Equal(t, "P170000000013", journal.entries[0].Identifier)
}

func TestFetchReadsArrayResponses(t *testing.T) {
	for _, body := range []string{
		`[["person", ` + peerRecord + `]]`,
		`[{"person": ` + peerRecord + `}]`,
	} {
		srv := httptest.NewServer(respond(body))
		builder, _ := newBuilder()

		p, err := NewClient(peerConfig(t, srv.URL), builder, nil).Fetch(context.Background(), "P170000000013")
		srv.Close()
		require.NoError(t, err, body)
		require.NotNil(t, p, body)
		assert.Equal(t, "Mary Banda", p.Name())
	}
}

func TestFetchWithoutPersonReturnsNil(t *testing.T) {
	for _, body := range []string{``, `{}`, `[]`, `null`, `{"error": "not found"}`, `[["status", "none"]]`} {
		srv := httptest.NewServer(respond(body))
		builder, _ := newBuilder()
		journal := &memoryJournal{}

		p, err := NewClient(peerConfig(t, srv.URL), builder, journal).Fetch(context.Background(), "P404")
		srv.Close()
		require.NoError(t, err, body)
		assert.Nil(t, p, body)
		assert.Equal(t, []string{"fetch:not_found"}, journal.outcomes(), body)
	}
}

func TestFetchFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		outcome models.Outcome
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}, ErrUnavailable, models.OutcomeCreationFailed},
		{"garbage", respond(`<html>`), ErrUnavailable, models.OutcomeCreationFailed},
		{"bad person", respond(`{"person": "yes"}`), ErrUnavailable, models.OutcomeCreationFailed},
		{"timeout", hang, ErrTimeout, models.OutcomeTimeout},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(c.handler)
			defer srv.Close()
			cfg := peerConfig(t, srv.URL)
			cfg.Timeout = 200 * time.Millisecond
			builder, _ := newBuilder()
			journal := &memoryJournal{}

			p, err := NewClient(cfg, builder, journal).Fetch(context.Background(), "P1")
			assert.Nil(t, p)
			require.Error(t, err)
			assert.ErrorIs(t, err, c.want)

			var syncErr *SyncError
			require.True(t, errors.As(err, &syncErr))
			assert.Equal(t, OpFetch, syncErr.Op)
			assert.Equal(t, c.outcome, syncErr.Outcome())
			assert.Equal(t, []string{"fetch:" + string(c.outcome)}, journal.outcomes())
			assert.NotEmpty(t, journal.entries[0].Error)
		})
	}
}

func TestFetchInvalidRecordIsNotASyncError(t *testing.T) {
	srv := httptest.NewServer(respond(`{"person": {"gender": "Male", "names": {"given_name": "No"}}}`))
	defer srv.Close()
	builder, _ := newBuilder()

	_, err := NewClient(peerConfig(t, srv.URL), builder, nil).Fetch(context.Background(), "P1")
	require.Error(t, err)
	assert.True(t, person.IsValidationError(err))
	var syncErr *SyncError
	assert.False(t, errors.As(err, &syncErr))
}

func TestPushTimeoutReturnsTimeoutLiteral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(hang))
	defer srv.Close()
	cfg := peerConfig(t, srv.URL)
	cfg.Timeout = 200 * time.Millisecond
	builder, _ := newBuilder()

	res, err := NewClient(cfg, builder, nil).Push(context.Background(), models.Demographics{Gender: "M"})
	require.NoError(t, err)
	assert.Equal(t, "timeout", string(res.Outcome))
	assert.Empty(t, res.Payload)
}

func TestPushFailuresReturnCreationFailed(t *testing.T) {
	closed := httptest.NewServer(respond(`{}`))
	closedURL := closed.URL
	closed.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "person exists", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()
	invalid := httptest.NewServer(respond(`person created`))
	defer invalid.Close()

	for _, target := range []string{closedURL, srv.URL, invalid.URL} {
		builder, _ := newBuilder()
		res, err := NewClient(peerConfig(t, target), builder, nil).Push(context.Background(), models.Demographics{Gender: "M"})
		require.NoError(t, err, target)
		assert.Equal(t, models.OutcomeCreationFailed, res.Outcome, target)
	}
}

func TestPushReturnsPersonPayload(t *testing.T) {
	reply := `{"person": ` + peerRecord + `}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/people/create_remote", r.URL.Path)
		var envelope models.WireEnvelope
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		assert.Equal(t, "Female", envelope.Person.Gender)
		assert.Equal(t, "Nurse", envelope.Person.Attributes["Occupation"])
		assert.Equal(t, "P170000000013", envelope.Person.Patient.Identifiers["National id"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, reply)
	}))
	defer srv.Close()
	builder, _ := newBuilder()
	journal := &memoryJournal{}

	res, err := NewClient(peerConfig(t, srv.URL), builder, journal).Push(context.Background(), models.Demographics{
		Gender:     "F",
		Occupation: "Nurse",
		Patient:    &models.PatientSection{Identifiers: models.StringMap{"National id": "P170000000013"}},
	})
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.JSONEq(t, reply, string(res.Payload))
	assert.Equal(t, []string{"push:created"}, journal.outcomes())
	assert.Equal(t, "P170000000013", journal.entries[0].Identifier)
}

func TestPushWithoutPersonIsEmpty(t *testing.T) {
	srv := httptest.NewServer(respond(`{"status": "queued"}`))
	defer srv.Close()
	builder, _ := newBuilder()

	res, err := NewClient(peerConfig(t, srv.URL), builder, nil).Push(context.Background(), models.Demographics{Gender: "M"})
	require.NoError(t, err)
	assert.True(t, res.Empty())
}

func TestClientCredentialsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"access_token": "peer-token", "token_type": "bearer", "expires_in": 3600}`)
	})
	mux.HandleFunc("/people/remote_demographics", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer peer-token", r.Header.Get("Authorization"))
		io.WriteString(w, `{}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := peerConfig(t, srv.URL)
	cfg.TokenURL = srv.URL + "/oauth/token"
	cfg.ClientID = "registry"
	cfg.ClientSecret = "s3cret"
	cfg.Credentials = config.Credentials{Usernames: []string{"ignored"}}
	builder, _ := newBuilder()

	p, err := NewClient(cfg, builder, nil).Fetch(context.Background(), "P1")
	require.NoError(t, err)
	assert.Nil(t, p)
}
