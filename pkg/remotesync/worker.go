package remotesync

import (
	"context"
	"errors"
	"strings"

	"github.com/synaptica-ai/registry/pkg/common/logger"
	"github.com/synaptica-ai/registry/pkg/common/models"
	"github.com/synaptica-ai/registry/pkg/person"
)

// Finder is the part of the person service the worker drives.
type Finder interface {
	FindOrFetch(ctx context.Context, identifier string) ([]person.Person, error)
}

// LookupWorker resolves "lookup" events published by other services,
// pulling records from the peer when they are not known locally.
type LookupWorker struct {
	finder Finder
}

func NewLookupWorker(finder Finder) *LookupWorker {
	return &LookupWorker{finder: finder}
}

// Handle returns an error only for failures worth another delivery.
func (w *LookupWorker) Handle(ctx context.Context, event models.Event) error {
	if event.Type != person.EventLookup {
		return nil
	}
	identifier, _ := event.Data["identifier"].(string)
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		logger.Log.WithField("event_id", event.ID).Warn("lookup event without identifier")
		return nil
	}

	people, err := w.finder.FindOrFetch(ctx, identifier)
	switch {
	case errors.Is(err, person.ErrSyncInProgress):
		logger.Log.WithField("identifier", identifier).Debug("lookup already running elsewhere")
		return nil
	case person.IsValidationError(err):
		logger.Log.WithError(err).WithField("identifier", identifier).Warn("remote record rejected")
		return nil
	case err != nil:
		return err
	}

	logger.Log.WithFields(map[string]interface{}{
		"event_id":   event.ID,
		"identifier": identifier,
		"matches":    len(people),
	}).Info("lookup resolved")
	return nil
}
