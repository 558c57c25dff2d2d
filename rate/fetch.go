package rate

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/tidwall/gjson"
)

const maxBody = 1 << 20

// Refresh fetches the rate and caches it. Without an endpoint it is a
// no-op. While an override is active the fetched value is discarded.
func (b *Book) Refresh(ctx context.Context) error {
	if b.cfg.Endpoint == "" {
		return nil
	}
	v, err := b.fetch(ctx)
	if err != nil {
		return err
	}

	r := Rate{Value: v, UpdatedAt: b.now()}
	b.mu.Lock()
	if b.override != nil {
		b.mu.Unlock()
		b.cfg.Logger.Debug("rate: fetched value discarded, override active", "rate", v)
		return nil
	}
	b.cached = r
	b.mu.Unlock()

	b.save(ctx, KeyRate, r)
	b.cfg.Logger.Info("rate: refreshed", "rate", v)
	b.notify()
	return nil
}

func (b *Book) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.Endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("rate: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := b.cfg.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("rate: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("rate: fetch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, fmt.Errorf("rate: read: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return 0, fmt.Errorf("rate: response is not JSON")
	}
	res := gjson.GetBytes(body, b.cfg.Path)
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("rate: %q not a number in response", b.cfg.Path)
	}
	v := res.Float()
	if err := validate(v); err != nil {
		return 0, err
	}
	return v, nil
}

// RefreshIfStale starts a background refresh when the cache is stale and no
// refresh is running. Failures are logged; readers keep the current rate.
func (b *Book) RefreshIfStale(ctx context.Context) {
	if b.cfg.Endpoint == "" || !b.Stale() {
		return
	}
	b.RefreshAsync(ctx)
}

// RefreshAsync starts a background refresh unless one is running. The
// returned channel is closed when it finishes.
func (b *Book) RefreshAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	if !b.fetching.CompareAndSwap(false, true) {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		defer b.fetching.Store(false)
		if err := b.Refresh(ctx); err != nil {
			b.cfg.Logger.Warn("rate: refresh failed, keeping current rate", "error", err, "rate", b.Rate())
		}
	}()
	return done
}
