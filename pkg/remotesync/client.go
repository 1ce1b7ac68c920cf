// Package remotesync exchanges demographic records with a peer registry:
// pulling a record by national id and pushing newly registered ones.
package remotesync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/synaptica-ai/registry/pkg/common/config"
	"github.com/synaptica-ai/registry/pkg/common/httpclient"
	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/observability/metrics"
	"github.com/synaptica-ai/registry/pkg/person"
	"github.com/synaptica-ai/registry/pkg/referencedata"
	"github.com/synaptica-ai/registry/pkg/translator"
)

const (
	fetchPath = "/people/remote_demographics"
	pushPath  = "/people/create_remote"

	outcomeCreated  = "created"
	outcomeNotFound = "not_found"
	outcomeEmpty    = "empty"

	defaultTimeout = 10 * time.Second
)

// Materializer creates the local record for a fetched payload.
type Materializer interface {
	Materialize(ctx context.Context, d models.Demographics) (*person.Person, error)
}

// Client makes one attempt per call, bounded by the configured timeout.
type Client struct {
	cfg     config.SyncConfig
	http    *resty.Client
	builder Materializer
	journal Recorder
}

// NewClient builds the peer client. journal may be nil.
func NewClient(cfg config.SyncConfig, builder Materializer, journal Recorder) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	base := httpclient.New(cfg.Timeout)
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		authed := cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
		authed.Timeout = cfg.Timeout
		base = authed
	}

	rc := resty.NewWithClient(base).
		SetBaseURL("http://"+cfg.Address()).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.TokenURL == "" && len(cfg.Credentials.Usernames) > 0 {
		password := ""
		if len(cfg.Credentials.Passwords) > 0 {
			password = cfg.Credentials.Passwords[0]
		}
		rc.SetBasicAuth(cfg.Credentials.Usernames[0], password)
	}
	if len(cfg.Location) > 0 {
		rc.SetHeader("X-Registry-Location", strings.Join(cfg.Location, ","))
	}
	if len(cfg.MachineAccount) > 0 {
		rc.SetHeader("X-Registry-Machine-Account", strings.Join(cfg.MachineAccount, ","))
	}

	return &Client{cfg: cfg, http: rc, builder: builder, journal: journal}
}

// Fetch asks the peer for the record carrying the national id and creates it
// locally. It returns nil without a network call when sync is disabled, and
// nil when the peer has no such record.
func (c *Client) Fetch(ctx context.Context, identifier string) (*person.Person, error) {
	payload := map[string]interface{}{
		"person": map[string]interface{}{
			"patient": map[string]interface{}{
				"identifiers": map[string]string{referencedata.NationalIDName: identifier},
			},
		},
	}
	return c.fetch(ctx, identifier, payload)
}

// FetchByDemographics sends whatever is known about a person and lets the
// peer pick the match.
func (c *Client) FetchByDemographics(ctx context.Context, d models.Demographics) (*person.Person, error) {
	return c.fetch(ctx, d.Identifier(referencedata.NationalIDName), models.WireEnvelope{Person: translator.ToWire(d)})
}

func (c *Client) fetch(ctx context.Context, identifier string, payload interface{}) (*person.Person, error) {
	if !c.cfg.SyncEnabled {
		return nil, nil
	}
	start := time.Now()
	entry := &SyncLog{Operation: OpFetch, Identifier: identifier, Peer: c.cfg.Address()}
	entry.Request = toJSONMap(payload)

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(fetchPath)
	if err != nil {
		return nil, c.fail(ctx, entry, start, classify(err))
	}
	entry.Response = bodyMap(resp.Body())
	if resp.IsError() {
		return nil, c.fail(ctx, entry, start, fmt.Errorf("status %d: %w", resp.StatusCode(), ErrUnavailable))
	}

	key, value, ok, err := firstEntry(resp.Body())
	if err != nil {
		return nil, c.fail(ctx, entry, start, fmt.Errorf("parsing response: %v: %w", err, ErrUnavailable))
	}
	if !ok || !strings.Contains(key, "person") {
		c.finish(ctx, entry, start, outcomeNotFound)
		return nil, nil
	}

	var record models.WireRecord
	if err := json.Unmarshal(value, &record); err != nil {
		return nil, c.fail(ctx, entry, start, fmt.Errorf("decoding person: %v: %w", err, ErrUnavailable))
	}

	p, err := c.builder.Materialize(ctx, translator.FromWire(record))
	if err != nil {
		entry.Error = err.Error()
		c.finish(ctx, entry, start, string(models.OutcomeCreationFailed))
		return nil, fmt.Errorf("materializing remote person: %w", err)
	}
	entry.PersonID = p.ID
	c.finish(ctx, entry, start, outcomeCreated)

	logger.Log.WithFields(map[string]interface{}{
		"identifier": identifier,
		"person_id":  p.ID,
		"peer":       c.cfg.Address(),
	}).Info("person fetched from peer registry")
	return p, nil
}

// Push sends a registration to the peer. Failures never surface as errors:
// a timeout yields OutcomeTimeout and anything else OutcomeCreationFailed. A
// reply that mentions "person" is returned as the payload; any other reply
// gives an empty result.
func (c *Client) Push(ctx context.Context, d models.Demographics) (models.PushResult, error) {
	if !c.cfg.SyncEnabled {
		return models.PushResult{}, nil
	}
	start := time.Now()
	entry := &SyncLog{Operation: OpPush, Identifier: d.Identifier(referencedata.NationalIDName), Peer: c.cfg.Address()}

	payload := models.WireEnvelope{Person: translator.ToWire(d)}
	entry.Request = toJSONMap(payload)

	resp, err := c.http.R().SetContext(ctx).SetBody(payload).Post(pushPath)
	if err != nil {
		return c.failPush(ctx, entry, start, classify(err)), nil
	}
	body := resp.Body()
	entry.Response = bodyMap(body)
	if resp.IsError() {
		return c.failPush(ctx, entry, start, fmt.Errorf("status %d: %w", resp.StatusCode(), ErrUnavailable)), nil
	}

	if !bytes.Contains(body, []byte("person")) {
		c.finish(ctx, entry, start, outcomeEmpty)
		return models.PushResult{}, nil
	}
	if !json.Valid(body) {
		return c.failPush(ctx, entry, start, fmt.Errorf("invalid JSON reply: %w", ErrUnavailable)), nil
	}
	c.finish(ctx, entry, start, outcomeCreated)
	return models.PushResult{Payload: json.RawMessage(body)}, nil
}

func classify(err error) error {
	if httpclient.IsTimeout(err) {
		return fmt.Errorf("%v: %w", err, ErrTimeout)
	}
	return fmt.Errorf("%v: %w", err, ErrUnavailable)
}

func (c *Client) fail(ctx context.Context, entry *SyncLog, start time.Time, err error) *SyncError {
	syncErr := &SyncError{Op: entry.Operation, Err: err}
	entry.Error = err.Error()
	c.finish(ctx, entry, start, string(syncErr.Outcome()))

	logger.Log.WithError(err).WithFields(map[string]interface{}{
		"operation":  entry.Operation,
		"identifier": entry.Identifier,
		"peer":       entry.Peer,
	}).Warn("peer registry exchange failed")
	return syncErr
}

func (c *Client) failPush(ctx context.Context, entry *SyncLog, start time.Time, err error) models.PushResult {
	return models.PushResult{Outcome: c.fail(ctx, entry, start, err).Outcome()}
}

func (c *Client) finish(ctx context.Context, entry *SyncLog, start time.Time, outcome string) {
	entry.Outcome = outcome
	entry.DurationMS = time.Since(start).Milliseconds()
	metrics.ObserveSync(entry.Operation, outcome, start)
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		logger.Log.WithError(err).Warn("failed to record sync attempt")
	}
}

func toJSONMap(v interface{}) map[string]interface{} {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func bodyMap(body []byte) map[string]interface{} {
	var m map[string]interface{}
	if err := json.Unmarshal(body, &m); err == nil {
		return m
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return map[string]interface{}{"raw": string(body)}
}
