package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/rs/zerolog"
)

// Caps bounds the rotation-managed lists
type Caps struct {
	MaxReflections int
	MaxTrades      int
	MaxSwapHistory int
	MaxSummaries   int
}

// DefaultCaps returns the standard list limits
func DefaultCaps() Caps {
	return Caps{
		MaxReflections: 50,
		MaxTrades:      100,
		MaxSwapHistory: 50,
		MaxSummaries:   50,
	}
}

// Store is a file-backed JSON document store.
// Every call reads disk; there is no in-process cache. Each helper is its own
// load/mutate/save unit.
type Store struct {
	path           string
	caps           Caps
	resetOnCorrupt bool
	now            func() time.Time
	log            zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for dates
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithCaps overrides the list caps
func WithCaps(caps Caps) Option {
	return func(s *Store) {
		if caps.MaxSummaries <= 0 {
			caps.MaxSummaries = DefaultCaps().MaxSummaries
		}
		s.caps = caps
	}
}

// WithResetOnCorrupt makes Load replace an unparsable document with defaults
// (after quarantining it) instead of failing
func WithResetOnCorrupt(reset bool) Option {
	return func(s *Store) {
		s.resetOnCorrupt = reset
	}
}

// NewStore creates a store for the document at path
func NewStore(path string, log zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		path: path,
		caps: DefaultCaps(),
		now:  time.Now,
		log:  log.With().Str("component", "memory_store").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

// Today returns the store's current ISO date
func (s *Store) Today() string {
	return s.now().Format(DateLayout)
}

// Load reads the document, applying the daily reset to both counters.
// A reset is persisted immediately, so a read can cause a write.
func (s *Store) Load() (*Document, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}

	today := s.Today()
	reset := false
	if doc.DailySpendDate != today {
		doc.DailySpendSOL = 0
		doc.DailySpendDate = today
		reset = true
	}
	if doc.DailySwapDate != today {
		doc.DailySwapUSD = 0
		doc.DailySwapDate = today
		reset = true
	}

	if reset {
		if err := s.Save(doc); err != nil {
			return nil, fmt.Errorf("failed to persist daily reset: %w", err)
		}
	}

	return doc, nil
}

// Save rotates capped lists, bumps the version and atomically replaces the file
func (s *Store) Save(doc *Document) error {
	doc.normalize()
	s.rotate(doc)
	doc.Version++

	if err := s.writeAtomic(doc); err != nil {
		doc.Version--
		return err
	}
	return nil
}

// SaveIfVersion saves only when the on-disk version still matches the version
// doc was loaded with. Returns ErrVersionConflict otherwise.
func (s *Store) SaveIfVersion(doc *Document) error {
	current, err := s.diskVersion()
	if err != nil {
		return err
	}
	if current != doc.Version {
		return fmt.Errorf("%w: loaded version %d, on disk %d", domain.ErrVersionConflict, doc.Version, current)
	}
	return s.Save(doc)
}

// Update runs a load/mutate/conditional-save cycle, reloading and reapplying
// fn when a concurrent writer got in first
func (s *Store) Update(fn func(doc *Document) error) error {
	const maxAttempts = 3

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		doc, err := s.Load()
		if err != nil {
			return err
		}
		if err := fn(doc); err != nil {
			return err
		}

		lastErr = s.SaveIfVersion(doc)
		if !errors.Is(lastErr, domain.ErrVersionConflict) {
			return lastErr
		}
		s.log.Warn().Int("attempt", attempt).Msg("State document changed concurrently, retrying")
	}
	return lastErr
}

func (s *Store) read() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		quarantine := s.quarantine(data)
		if s.resetOnCorrupt {
			s.log.Warn().
				Err(err).
				Str("quarantine", quarantine).
				Msg("State document is corrupt, starting from defaults")
			return NewDocument(), nil
		}
		return nil, fmt.Errorf("%w (%s, copy at %s): %v", domain.ErrCorruptDocument, s.path, quarantine, err)
	}

	doc.normalize()
	return &doc, nil
}

// quarantine keeps a copy of an unparsable document next to the original
func (s *Store) quarantine(data []byte) string {
	target := fmt.Sprintf("%s.corrupt-%s", s.path, s.now().Format("20060102-150405"))
	if err := os.WriteFile(target, data, 0600); err != nil {
		s.log.Error().Err(err).Str("path", target).Msg("Failed to quarantine corrupt state document")
		return ""
	}
	return target
}

func (s *Store) diskVersion() (int64, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read state document: %w", err)
	}

	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCorruptDocument, err)
	}
	return head.Version, nil
}

// writeAtomic writes to a temp file in the same directory, syncs it and renames
// it over the document. The temp file is removed on any failure.
func (s *Store) writeAtomic(doc *Document) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := encode(tmp, doc); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync state document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

func encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
