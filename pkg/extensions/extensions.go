// Package extensions manages optional editor extensions: a closed set of
// known ids, their persisted disabled list and the runtime toggle.
package extensions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/grovetools/editsync/errors"
	"github.com/grovetools/editsync/logging"
	"github.com/sirupsen/logrus"
)

// ID identifies a known extension.
type ID string

// Vim is the modal editing extension.
const Vim ID = "vscodevim.vim"

var known = []ID{Vim}

// DisabledKey is the store key holding the JSON list of disabled extensions.
const DisabledKey = "vs-global://extensionsIdentifiers/disabled"

// maxSuggestDistance bounds the edit distance of a "did you mean" hint.
const maxSuggestDistance = 3

// Lookup returns the known extension with the given id. For a near miss
// the error carries the closest known id as the "suggestion" detail.
func Lookup(id string) (ID, error) {
	best, bestDist := ID(""), maxSuggestDistance+1
	for _, k := range known {
		if string(k) == id {
			return k, nil
		}
		if d := levenshtein.ComputeDistance(string(k), id); d < bestDist {
			best, bestDist = k, d
		}
	}
	err := errors.UnknownExtension(id)
	if best != "" {
		err = err.WithDetail("suggestion", string(best))
	}
	return "", err
}

// All returns every known extension.
func All() []ID {
	return append([]ID(nil), known...)
}

// Record is one entry of the persisted disabled list.
type Record struct {
	ID string `json:"id"`
}

// Store is the persisted key-value settings the disabled list lives in.
type Store interface {
	GetString(key string) (value string, ok bool, err error)
	SetString(key, value string) error
}

// Controller switches an extension inside a live runtime.
type Controller interface {
	EnableExtension(ctx context.Context, id string) error
	DisableExtension(ctx context.Context, id string) error
}

// Toggle applies enable/disable requests against a Store and a Controller.
type Toggle struct {
	mu     sync.Mutex
	store  Store
	logger *logrus.Entry
}

// NewToggle creates a toggle over store.
func NewToggle(store Store, logger *logrus.Entry) *Toggle {
	if logger == nil {
		logger = logging.NewLogger("extensions")
	}
	return &Toggle{store: store, logger: logger}
}

// Status reads the persisted disabled list. configured is false when no
// record has ever been written.
func (t *Toggle) Status() (configured bool, records []Record, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status()
}

func (t *Toggle) status() (bool, []Record, error) {
	raw, ok, err := t.store.GetString(DisabledKey)
	if err != nil {
		return false, nil, errors.ExtensionStore(DisabledKey, err)
	}
	if !ok || raw == "" {
		return false, nil, nil
	}

	var records []Record
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		// A record exists even if it is not ours to parse.
		t.logger.WithError(err).Warn("Disabled extensions record is not a list of ids")
		return true, nil, nil
	}
	return true, records, nil
}

// IsDisabled reports whether id is in the persisted disabled list.
func (t *Toggle) IsDisabled(id ID) (bool, error) {
	_, records, err := t.Status()
	if err != nil {
		return false, err
	}
	for _, r := range records {
		if r.ID == string(id) {
			return true, nil
		}
	}
	return false, nil
}

// PrepareDisable writes the default disabled record for id when no record
// exists. An existing record is never overwritten. It reports whether a
// write happened.
func (t *Toggle) PrepareDisable(id ID) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	configured, records, err := t.status()
	if err != nil {
		return false, err
	}
	if configured {
		t.logger.WithFields(logrus.Fields{
			"extension": id,
			"records":   len(records),
		}).Debug("Disabled extensions record already exists, leaving it untouched")
		return false, nil
	}

	data, err := json.Marshal([]Record{{ID: string(id)}})
	if err != nil {
		return false, errors.ExtensionStore(DisabledKey, err)
	}
	if err := t.store.SetString(DisabledKey, string(data)); err != nil {
		return false, errors.ExtensionStore(DisabledKey, err)
	}
	t.logger.WithField("extension", id).Debug("Wrote default disabled extensions record")
	return true, nil
}

// Apply enables or disables id in the runtime. Disabling first makes sure
// a persisted record exists.
func (t *Toggle) Apply(ctx context.Context, ctrl Controller, id ID, enabled bool) error {
	if enabled {
		return ctrl.EnableExtension(ctx, string(id))
	}
	if _, err := t.PrepareDisable(id); err != nil {
		return err
	}
	return ctrl.DisableExtension(ctx, string(id))
}
