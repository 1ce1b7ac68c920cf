package remotesync

import (
	"errors"
	"fmt"

	"github.com/synaptica-ai/registry/pkg/common/models"
)

var (
	ErrTimeout     = errors.New("peer registry timed out")
	ErrUnavailable = errors.New("peer registry unavailable")
)

// SyncError is a failed exchange with the peer. It wraps ErrTimeout or
// ErrUnavailable.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Outcome is the literal the failure is reported as.
func (e *SyncError) Outcome() models.Outcome {
	if errors.Is(e.Err, ErrTimeout) {
		return models.OutcomeTimeout
	}
	return models.OutcomeCreationFailed
}
