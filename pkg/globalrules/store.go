// Package globalrules manages the user level library of named rule snippets.
// The library is one ordered list kept under a single settings key; every
// operation re-reads it, so nothing is cached between calls.
package globalrules

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/jingkaihe/rulesmgr/pkg/logger"
	"github.com/jingkaihe/rulesmgr/pkg/settings"
	"github.com/jingkaihe/rulesmgr/pkg/types/rules"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// SettingsKey is the settings entry holding the global rule list.
const SettingsKey = "rules-manager.globalRules"

// Store is the sole writer of the persisted global rule list.
type Store struct {
	settings settings.Store
	now      func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for save timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store persisting into s.
func New(s settings.Store, opts ...Option) *Store {
	store := &Store{
		settings: s,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// load returns the records in store order.
func (s *Store) load(ctx context.Context) ([]rules.GlobalRule, error) {
	raw, err := s.settings.Get(ctx, SettingsKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read global rules")
	}
	if raw == nil {
		return []rules.GlobalRule{}, nil
	}

	var records []rules.GlobalRule
	if err := mapstructure.Decode(raw, &records); err != nil {
		return nil, errors.Wrap(err, "failed to decode global rules")
	}
	return records, nil
}

func (s *Store) persist(ctx context.Context, records []rules.GlobalRule) error {
	if err := s.settings.Update(ctx, SettingsKey, records); err != nil {
		return errors.Wrap(err, "failed to write global rules")
	}
	return nil
}

func sortByTimestampDesc(records []rules.GlobalRule) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
}

// List returns every record, most recently saved first. Records saved at the
// same millisecond keep their store order.
func (s *Store) List(ctx context.Context) ([]rules.GlobalRule, error) {
	records, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	sortByTimestampDesc(records)
	return records, nil
}

// FindByName returns the record with exactly this name, or nil.
func (s *Store) FindByName(ctx context.Context, name string) (*rules.GlobalRule, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].Name == name {
			return &records[i], nil
		}
	}
	return nil, nil
}

// Save stores a rule under name. An existing record with the same name is
// replaced where it stands; otherwise the rule is appended. Tags are trusted
// as given.
func (s *Store) Save(ctx context.Context, name, content string, tags []string, origin rules.EditorType) error {
	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	rule := rules.GlobalRule{
		Name:       name,
		Content:    content,
		Timestamp:  s.now().UnixMilli(),
		Tags:       tags,
		EditorType: origin,
	}

	replaced := false
	for i := range records {
		if records[i].Name == name {
			records[i] = rule
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rule)
	}

	if err := s.persist(ctx, records); err != nil {
		return err
	}

	logger.G(ctx).WithField("name", name).WithField("replaced", replaced).Debug("saved global rule")
	return nil
}

// SaveAll stores a batch of rules in one write, each replacing a record of the
// same name or appended otherwise. The batch is stamped with strictly
// decreasing timestamps in its given order, so List returns it in that order.
func (s *Store) SaveAll(ctx context.Context, batch []rules.GlobalRule) error {
	if len(batch) == 0 {
		return nil
	}
	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	now := s.now().UnixMilli()
	for i, rule := range batch {
		rule.Timestamp = now - int64(i)
		records = upsert(records, rule)
	}

	if err := s.persist(ctx, records); err != nil {
		return err
	}

	logger.G(ctx).WithField("count", len(batch)).Debug("saved global rule batch")
	return nil
}

func upsert(records []rules.GlobalRule, rule rules.GlobalRule) []rules.GlobalRule {
	for i := range records {
		if records[i].Name == rule.Name {
			records[i] = rule
			return records
		}
	}
	return append(records, rule)
}

// Delete removes the record named name. Deleting a missing name is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	kept := records[:0]
	for _, r := range records {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		logger.G(ctx).WithField("name", name).Debug("global rule not present, nothing to delete")
		return nil
	}

	return s.persist(ctx, kept)
}

// Search matches query case-insensitively as a substring of the name or of
// any tag. A non-empty source additionally requires the rule's origin editor
// type to equal it. An empty query matches every record.
func (s *Store) Search(ctx context.Context, query string, source rules.EditorType) ([]rules.GlobalRule, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(query)
	matches := []rules.GlobalRule{}
	for _, r := range records {
		if source != "" && r.EditorType != source {
			continue
		}
		if matchesQuery(r, q) {
			matches = append(matches, r)
		}
	}
	return matches, nil
}

func matchesQuery(r rules.GlobalRule, lowerQuery string) bool {
	if strings.Contains(strings.ToLower(r.Name), lowerQuery) {
		return true
	}
	for _, tag := range r.Tags {
		if strings.Contains(strings.ToLower(tag), lowerQuery) {
			return true
		}
	}
	return false
}
