// Package save keeps the record that survives reincarnation: the generation
// counter, unlocked titles and the previous life's strongest stat.
package save

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"lifesim/internal/config"
)

// DefaultKey is the key the blob is stored under.
const DefaultKey = "lifesim_save"

var (
	// ErrNotFound is returned by a Store for a key it does not hold.
	ErrNotFound = errors.New("save: key not found")
	// ErrCorrupt reports a blob that was discarded on load.
	ErrCorrupt = errors.New("save: corrupt data")
)

// Data is the persisted blob.
type Data struct {
	Gen                     int      `json:"gen"`
	Titles                  []string `json:"titles"`
	HighestStatFromLastLife *string  `json:"highestStatFromLastLife"`
}

// Default is a fresh save.
func Default() Data {
	return Data{Gen: 1, Titles: []string{}}
}

// Store is a flat key-value store for blobs.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Decode validates raw. Every field must be present with the right type and
// gen must be a positive integer. Titles must be unique.
func Decode(raw []byte) (Data, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Data{}, err
	}
	if fields == nil {
		return Data{}, errors.New("not an object")
	}
	for _, k := range []string{"gen", "titles", "highestStatFromLastLife"} {
		if _, ok := fields[k]; !ok {
			return Data{}, fmt.Errorf("missing %s", k)
		}
	}

	var gen float64
	if err := json.Unmarshal(fields["gen"], &gen); err != nil {
		return Data{}, fmt.Errorf("gen: %w", err)
	}
	if gen < 1 || gen != math.Trunc(gen) || gen > math.MaxInt32 {
		return Data{}, fmt.Errorf("gen: %v is not a positive integer", gen)
	}

	if bytes.Equal(bytes.TrimSpace(fields["titles"]), []byte("null")) {
		return Data{}, errors.New("titles: null")
	}
	var titles []string
	if err := json.Unmarshal(fields["titles"], &titles); err != nil {
		return Data{}, fmt.Errorf("titles: %w", err)
	}

	var highest *string
	if err := json.Unmarshal(fields["highestStatFromLastLife"], &highest); err != nil {
		return Data{}, fmt.Errorf("highestStatFromLastLife: %w", err)
	}

	d := Data{Gen: int(gen), Titles: []string{}, HighestStatFromLastLife: highest}
	for _, t := range titles {
		if !d.addTitle(t) {
			return Data{}, fmt.Errorf("titles: duplicate %q", t)
		}
	}
	return d, nil
}

func (d *Data) addTitle(name string) bool {
	for _, t := range d.Titles {
		if t == name {
			return false
		}
	}
	d.Titles = append(d.Titles, name)
	return true
}

// Load reads the save under key. A missing key yields Default. A corrupt blob
// is deleted and also yields Default, with an error wrapping ErrCorrupt so
// the caller can report it.
func Load(ctx context.Context, s Store, key string) (Data, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Default(), fmt.Errorf("read save: %w", err)
	}
	d, err := Decode(raw)
	if err == nil {
		return d, nil
	}
	if derr := s.Delete(ctx, key); derr != nil {
		return Default(), fmt.Errorf("delete corrupt save: %w", derr)
	}
	return Default(), fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// Save writes d under key.
func Save(ctx context.Context, s Store, key string, d Data) error {
	if d.Titles == nil {
		d.Titles = []string{}
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode save: %w", err)
	}
	if err := s.Put(ctx, key, raw); err != nil {
		return fmt.Errorf("write save: %w", err)
	}
	return nil
}

// UnlockRate is the floored percentage of catalog titles unlocked.
func UnlockRate(d Data, titles []config.TitleDef) int {
	if len(titles) == 0 {
		return 0
	}
	return len(d.Titles) * 100 / len(titles)
}

// GalleryEntry is one title as shown in the collection.
type GalleryEntry struct {
	Title    config.TitleDef `json:"title"`
	Unlocked bool            `json:"unlocked"`
}

// Gallery lists the catalog in order with unlock marks. Hidden titles that
// are still locked are left out.
func Gallery(d Data, titles []config.TitleDef) []GalleryEntry {
	have := make(map[string]bool, len(d.Titles))
	for _, t := range d.Titles {
		have[t] = true
	}
	out := make([]GalleryEntry, 0, len(titles))
	for _, t := range titles {
		if t.Hidden && !have[t.Name] {
			continue
		}
		out = append(out, GalleryEntry{Title: t, Unlocked: have[t.Name]})
	}
	return out
}

// Archive owns one save and records each finished life into it. It is safe
// for concurrent use.
type Archive struct {
	mu      sync.Mutex
	store   Store
	key     string
	logger  *log.Logger
	timeout time.Duration
	data    Data
}

// OpenArchive loads key from store. Corrupt data is reset and logged.
func OpenArchive(ctx context.Context, store Store, key string, logger *log.Logger) (*Archive, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if key == "" {
		key = DefaultKey
	}
	d, err := Load(ctx, store, key)
	if errors.Is(err, ErrCorrupt) {
		logger.Warn("save reset", "key", key, "err", err)
	} else if err != nil {
		return nil, err
	}
	return &Archive{store: store, key: key, logger: logger, timeout: 5 * time.Second, data: d}, nil
}

// Data returns a copy of the current save.
func (a *Archive) Data() Data {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.data
	d.Titles = append([]string{}, a.data.Titles...)
	if a.data.HighestStatFromLastLife != nil {
		h := *a.data.HighestStatFromLastLife
		d.HighestStatFromLastLife = &h
	}
	return d
}

// RecordLife advances the generation, unlocks title and remembers the
// strongest stat, then persists.
func (a *Archive) RecordLife(title, highestStat string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data.Gen++
	if title != "" {
		a.data.addTitle(title)
	}
	if highestStat != "" {
		h := highestStat
		a.data.HighestStatFromLastLife = &h
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := Save(ctx, a.store, a.key, a.data); err != nil {
		return err
	}
	a.logger.Debug("save written", "key", a.key, "gen", a.data.Gen, "titles", len(a.data.Titles))
	return nil
}

// Reset wipes the save back to Default.
func (a *Archive) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.data = Default()
	if err := a.store.Delete(ctx, a.key); err != nil {
		return fmt.Errorf("reset save: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: map[string][]byte{}}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
