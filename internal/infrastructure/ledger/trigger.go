// Package ledger implements the outbound payment-release trigger.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/core/ports"
)

const requestTimeout = 10 * time.Second

// HTTPTrigger posts ledger entries to the wallet service. The receiving
// endpoint is idempotent by delivery id, so a retried POST is safe.
type HTTPTrigger struct {
	url    string
	client *http.Client
	log    zerolog.Logger
}

func NewHTTPTrigger(url string, log zerolog.Logger) *HTTPTrigger {
	return &HTTPTrigger{
		url:    url,
		client: &http.Client{Timeout: requestTimeout},
		log:    log,
	}
}

func (t *HTTPTrigger) OnDeliveryConfirmed(ctx context.Context, entry ports.LedgerEntry) error {
	body, err := json.Marshal(map[string]any{
		"delivery_id": entry.DeliveryID,
		"amount":      entry.Amount,
		"currency":    entry.Currency,
		"payer_id":    entry.PayerID,
		"payee_id":    entry.PayeeID,
	})
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ledger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("ledger request: unexpected status %d", resp.StatusCode)
	}

	t.log.Info().
		Str("delivery_id", entry.DeliveryID).
		Float64("amount", entry.Amount).
		Msg("ledger entry dispatched")
	return nil
}

// LogTrigger records entries in the log only. Used in development and as a
// fallback when no wallet endpoint is configured.
type LogTrigger struct {
	log zerolog.Logger
}

func NewLogTrigger(log zerolog.Logger) *LogTrigger {
	return &LogTrigger{log: log}
}

func (t *LogTrigger) OnDeliveryConfirmed(_ context.Context, entry ports.LedgerEntry) error {
	t.log.Info().
		Str("delivery_id", entry.DeliveryID).
		Float64("amount", entry.Amount).
		Str("currency", entry.Currency).
		Str("payer_id", entry.PayerID).
		Str("payee_id", entry.PayeeID).
		Msg("ledger entry (log only)")
	return nil
}
