// Package rate holds the cached currency conversion rate.
//
// A Book answers Rate() immediately from, in order: a manual override, a
// fresh cached value, or the hardcoded default. Refreshes fetch the rate
// from a JSON endpoint on their own goroutine and never block readers. A
// fetch that lands while an override is active is discarded.
package rate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/overlay/kv"
)

// Store keys.
const (
	KeyRate     = "fx.rate"
	KeyOverride = "fx.override"
)

const (
	DefaultRate = 1.10
	DefaultTTL  = 24 * time.Hour
)

// ErrInvalidRate rejects a rate that is not a finite positive number.
var ErrInvalidRate = errors.New("rate: invalid rate")

// Rate is a conversion factor with the time it was obtained.
type Rate struct {
	Value     float64   `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Source tells where the current rate comes from.
type Source string

const (
	SourceOverride Source = "override"
	SourceCached   Source = "cached"
	SourceDefault  Source = "default"
)

// Config configures a Book.
type Config struct {
	// Endpoint is fetched with GET. Empty disables refreshes.
	Endpoint string
	// Path is the gjson path of the rate in the response, e.g. "rates.USD".
	Path    string
	TTL     time.Duration
	Default float64
	Client  *http.Client
	Logger  *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "rates.USD"
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Default <= 0 {
		c.Default = DefaultRate
	}
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Book is the shared rate state. Safe for concurrent use.
type Book struct {
	cfg   Config
	store kv.Store
	now   func() time.Time

	mu       sync.RWMutex
	cached   Rate
	override *Rate
	mode     Mode

	subMu  sync.Mutex
	subs   map[int]func()
	nextID int

	fetching atomic.Bool
}

// NewBook creates a Book. A nil store disables persistence.
func NewBook(store kv.Store, cfg Config) *Book {
	cfg.applyDefaults()
	if store == nil {
		store = kv.Nop{}
	}
	return &Book{
		cfg:   cfg,
		store: store,
		now:   time.Now,
		mode:  ModeBoth,
		subs:  make(map[int]func()),
	}
}

// Init loads the persisted override and cached rate. Unreadable entries are
// logged and ignored.
func (b *Book) Init(ctx context.Context) {
	if r, ok := b.load(ctx, KeyOverride); ok {
		b.mu.Lock()
		b.override = &r
		b.mu.Unlock()
	}
	if r, ok := b.load(ctx, KeyRate); ok {
		b.mu.Lock()
		b.cached = r
		b.mu.Unlock()
	}
}

func (b *Book) load(ctx context.Context, key string) (Rate, bool) {
	raw, ok, err := b.store.Get(ctx, key)
	if err != nil {
		b.cfg.Logger.Warn("rate: load", "key", key, "error", err)
		return Rate{}, false
	}
	if !ok {
		return Rate{}, false
	}
	var r Rate
	if err := json.Unmarshal([]byte(raw), &r); err != nil || validate(r.Value) != nil {
		b.cfg.Logger.Warn("rate: discard persisted value", "key", key, "raw", raw)
		return Rate{}, false
	}
	return r, true
}

func (b *Book) save(ctx context.Context, key string, r Rate) {
	data, _ := json.Marshal(r)
	if err := b.store.Set(ctx, key, string(data)); err != nil {
		b.cfg.Logger.Warn("rate: persist", "key", key, "error", err)
	}
}

// Rate returns the rate to use now.
func (b *Book) Rate() float64 {
	v, _ := b.current()
	return v
}

func (b *Book) current() (float64, Source) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.override != nil {
		return b.override.Value, SourceOverride
	}
	if b.freshLocked() {
		return b.cached.Value, SourceCached
	}
	return b.cfg.Default, SourceDefault
}

func (b *Book) freshLocked() bool {
	return b.cached.Value > 0 && b.now().Sub(b.cached.UpdatedAt) < b.cfg.TTL
}

// Stale reports whether the cached rate is absent or older than the TTL.
func (b *Book) Stale() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return !b.freshLocked()
}

// State is a point-in-time view of the book.
type State struct {
	Rate      float64   `json:"rate"`
	Source    Source    `json:"source"`
	Cached    float64   `json:"cached,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Override  bool      `json:"override"`
	Mode      Mode      `json:"mode"`
}

// Snapshot returns the current state.
func (b *Book) Snapshot() State {
	v, src := b.current()
	b.mu.RLock()
	defer b.mu.RUnlock()
	return State{
		Rate:      v,
		Source:    src,
		Cached:    b.cached.Value,
		UpdatedAt: b.cached.UpdatedAt,
		Override:  b.override != nil,
		Mode:      b.mode,
	}
}

// SetOverride pins the rate until ClearOverride.
func (b *Book) SetOverride(ctx context.Context, v float64) error {
	if err := validate(v); err != nil {
		return err
	}
	r := Rate{Value: v, UpdatedAt: b.now()}
	b.mu.Lock()
	b.override = &r
	b.mu.Unlock()
	b.save(ctx, KeyOverride, r)
	b.cfg.Logger.Info("rate: override set", "rate", v)
	b.notify()
	return nil
}

// ClearOverride returns to cached or default rates.
func (b *Book) ClearOverride(ctx context.Context) {
	b.mu.Lock()
	had := b.override != nil
	b.override = nil
	b.mu.Unlock()
	if err := b.store.Delete(ctx, KeyOverride); err != nil {
		b.cfg.Logger.Warn("rate: delete override", "error", err)
	}
	if had {
		b.cfg.Logger.Info("rate: override cleared")
		b.notify()
	}
}

// ParseManualRate validates user input. Empty input means "clear the
// override".
func ParseManualRate(input string) (v float64, clear bool, err error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, true, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %q is not a number", ErrInvalidRate, s)
	}
	if err := validate(v); err != nil {
		return 0, false, err
	}
	return v, false, nil
}

// SetManualRate applies user input: a positive number sets the override,
// empty input clears it. Invalid input changes nothing.
func (b *Book) SetManualRate(ctx context.Context, input string) error {
	v, clear, err := ParseManualRate(input)
	if err != nil {
		return err
	}
	if clear {
		b.ClearOverride(ctx)
		return nil
	}
	return b.SetOverride(ctx, v)
}

func validate(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidRate, v)
	}
	return nil
}

// OnChange registers fn to run after every change of rate or mode. The
// returned func unregisters it.
func (b *Book) OnChange(fn func()) (cancel func()) {
	b.subMu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.subMu.Unlock()
	return func() {
		b.subMu.Lock()
		delete(b.subs, id)
		b.subMu.Unlock()
	}
}

func (b *Book) notify() {
	b.subMu.Lock()
	fns := make([]func(), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.subMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}
