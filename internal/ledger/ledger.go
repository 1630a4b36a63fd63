// Package ledger reads the persona's wallet through a JSON-RPC node.
// The balance it reports is shared with unrelated spenders, so callers
// treat it as advisory, never as a reservation.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"personad/pkg/retrylimit"
)

const unitsPerCoin = 1_000_000_000 // base units per whole coin

// Transfer is one incoming payment.
type Transfer struct {
	Amount float64   `json:"amount"`
	Sender string    `json:"sender"`
	At     time.Time `json:"at"`
}

type Client struct {
	rpcURL  string
	address string
	http    *http.Client
	lim     *retrylimit.AdaptiveLimiter
}

func NewClient(rpcURL, address string) *Client {
	return &Client{
		rpcURL:  rpcURL,
		address: address,
		http:    &http.Client{Timeout: 10 * time.Second},
		lim:     retrylimit.NewAdaptiveLimiter(5, 1, 10, 1, 0.5),
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	return retrylimit.Do(ctx, c.lim, retrylimit.DefaultConfig(), func() error {
		body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
		if err != nil {
			return &retrylimit.Permanent{Err: err}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
		if err != nil {
			return &retrylimit.Permanent{Err: err}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK {
			return &retrylimit.StatusError{Code: resp.StatusCode, Msg: string(raw[:min(len(raw), 200)])}
		}

		var envelope struct {
			Result json.RawMessage `json:"result"`
			Error  *struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.Error != nil {
			return &retrylimit.Permanent{Err: fmt.Errorf("rpc %d: %s", envelope.Error.Code, envelope.Error.Message)}
		}
		return json.Unmarshal(envelope.Result, result)
	})
}

// Balance returns the wallet balance in whole coins.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var result struct {
		Value uint64 `json:"value"`
	}
	if err := c.call(ctx, "getBalance", []any{c.address}, &result); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return float64(result.Value) / unitsPerCoin, nil
}

// RecentIncoming returns up to n parsed incoming transfers, newest first.
func (c *Client) RecentIncoming(ctx context.Context, n int) ([]Transfer, error) {
	var sigs []struct {
		Signature string `json:"signature"`
		BlockTime int64  `json:"blockTime"`
	}
	params := []any{c.address, map[string]any{"limit": n}}
	if err := c.call(ctx, "getSignaturesForAddress", params, &sigs); err != nil {
		return nil, fmt.Errorf("get signatures: %w", err)
	}

	transfers := make([]Transfer, 0, len(sigs))
	for _, sig := range sigs {
		var tx struct {
			Meta struct {
				PreBalances  []uint64 `json:"preBalances"`
				PostBalances []uint64 `json:"postBalances"`
			} `json:"meta"`
			Transaction struct {
				Message struct {
					AccountKeys []string `json:"accountKeys"`
				} `json:"message"`
			} `json:"transaction"`
		}
		err := c.call(ctx, "getTransaction", []any{sig.Signature, map[string]any{"encoding": "json"}}, &tx)
		if err != nil {
			continue // skip unparseable transactions, keep the rest
		}
		for i, key := range tx.Transaction.Message.AccountKeys {
			if key != c.address || i >= len(tx.Meta.PreBalances) || i >= len(tx.Meta.PostBalances) {
				continue
			}
			delta := int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
			if delta <= 0 {
				break
			}
			sender := ""
			if len(tx.Transaction.Message.AccountKeys) > 0 {
				sender = tx.Transaction.Message.AccountKeys[0]
			}
			transfers = append(transfers, Transfer{
				Amount: float64(delta) / unitsPerCoin,
				Sender: sender,
				At:     time.Unix(sig.BlockTime, 0).UTC(),
			})
			break
		}
	}
	return transfers, nil
}
