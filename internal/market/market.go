// Package market polls a DexScreener-shaped price feed. The last good
// quote is cached so a feed outage degrades scoring instead of failing
// the tick.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"personad/pkg/retrylimit"
)

// Quote is one market observation.
type Quote struct {
	Price     float64   `json:"price"`
	Change1h  float64   `json:"change_1h"`
	Change6h  float64   `json:"change_6h"`
	Change24h float64   `json:"change_24h"`
	Volume24h float64   `json:"volume_24h"`
	At        time.Time `json:"at"`
}

type Feed struct {
	url  string
	http *http.Client
	lim  *retrylimit.AdaptiveLimiter

	mu   sync.Mutex
	last *Quote
}

func NewFeed(url string) *Feed {
	return &Feed{
		url:  url,
		http: &http.Client{Timeout: 10 * time.Second},
		lim:  retrylimit.NewAdaptiveLimiter(2, 1, 5, 1, 0.5),
	}
}

// Quote fetches the current quote. On failure it falls back to the cached
// last-good quote; the error is returned only when no cache exists yet.
func (f *Feed) Quote(ctx context.Context) (*Quote, error) {
	q, err := f.fetch(ctx)
	if err == nil {
		f.mu.Lock()
		f.last = q
		f.mu.Unlock()
		return q, nil
	}

	f.mu.Lock()
	cached := f.last
	f.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	return nil, err
}

func (f *Feed) fetch(ctx context.Context) (*Quote, error) {
	var out *Quote
	err := retrylimit.Do(ctx, f.lim, retrylimit.DefaultConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return &retrylimit.Permanent{Err: err}
		}
		resp, err := f.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &retrylimit.StatusError{Code: resp.StatusCode, Msg: "price feed"}
		}

		var parsed struct {
			Pairs []struct {
				PriceUSD    string `json:"priceUsd"`
				PriceChange struct {
					H1  float64 `json:"h1"`
					H6  float64 `json:"h6"`
					H24 float64 `json:"h24"`
				} `json:"priceChange"`
				Volume struct {
					H24 float64 `json:"h24"`
				} `json:"volume"`
			} `json:"pairs"`
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return err
		}
		if len(parsed.Pairs) == 0 {
			return fmt.Errorf("price feed: no pairs")
		}

		p := parsed.Pairs[0]
		var price float64
		if _, err := fmt.Sscanf(p.PriceUSD, "%f", &price); err != nil {
			return fmt.Errorf("price feed: bad price %q", p.PriceUSD)
		}
		out = &Quote{
			Price:     price,
			Change1h:  p.PriceChange.H1,
			Change6h:  p.PriceChange.H6,
			Change24h: p.PriceChange.H24,
			Volume24h: p.Volume.H24,
			At:        time.Now().UTC(),
		}
		return nil
	})
	return out, err
}
