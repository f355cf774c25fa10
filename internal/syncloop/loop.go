// Package syncloop drives the engine's two timer-shaped responsibilities
// (spec §5): a 10-second health-check cadence, and on-demand per-account
// UTXO sync. Neither owns its own goroutine stack beyond the single
// ticker Run starts — consistent with the spec's single-threaded
// cooperative model, where suspension points (RPC calls, storage I/O)
// are the only yield points.
package syncloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/internal/obs"
	"github.com/nockwallet/walletengine/internal/rpcclient"
	"github.com/nockwallet/walletengine/internal/utxostore"
)

// Loop owns the health-check ticker and exposes SyncAccount for
// on-demand reconciliation passes, both rate-limited per spec's "sync
// loop retries health checks with a fixed 10-second cadence and does
// not self-abort on isolated failures".
type Loop struct {
	rpc     rpcclient.Handle
	limiter *RateLimiter
	logger  *obs.Logger

	healthInterval time.Duration
	txExpiry       time.Duration
	retry          RetryConfig

	mu      sync.RWMutex
	healthy bool
}

// New builds a Loop. healthInterval and txExpiry come from
// config.Config's SyncIntervalSeconds and TxExpiryMinutes.
func New(rpc rpcclient.Handle, healthInterval, txExpiry time.Duration, logger *obs.Logger) *Loop {
	if logger == nil {
		logger = obs.Null()
	}
	return &Loop{
		rpc:            rpc,
		limiter:        NewRateLimiter(5, 10),
		logger:         logger,
		healthInterval: healthInterval,
		txExpiry:       txExpiry,
		retry:          DefaultRetryConfig(),
	}
}

// Run ticks the health check on healthInterval until ctx is cancelled.
// It never returns an error on isolated failures; only ctx cancellation
// ends the loop.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.healthInterval)
	defer ticker.Stop()

	l.checkHealth(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.checkHealth(ctx)
		}
	}
}

func (l *Loop) checkHealth(ctx context.Context) {
	if err := l.limiter.Wait(ctx, "health"); err != nil {
		return
	}

	err := Retry(ctx, l.retry, func() error {
		return l.rpc.HealthCheck(ctx)
	})

	l.mu.Lock()
	l.healthy = err == nil
	l.mu.Unlock()

	if err != nil {
		l.logger.ErrorAttrs("syncloop: health check failing", slog.String("error", err.Error()))
	}
}

// WithRetryConfig overrides the backoff schedule, the way vault.WithClock
// overrides the wall clock for deterministic tests.
func (l *Loop) WithRetryConfig(cfg RetryConfig) *Loop {
	l.retry = cfg
	return l
}

// IsHealthy reports the outcome of the most recent health check.
func (l *Loop) IsHealthy() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.healthy
}

// SyncAccount runs one reconciliation pass for accountPKH against store:
// fetch the chain's current UTXO set (by direct PKH plus the simple and
// coinbase convenience first names, spec §4.4), diff it against the
// store's local view, and apply the result. Transient RPC failures are
// retried with backoff rather than surfaced, matching spec §7's
// "does not self-abort on isolated failures"; only a context
// cancellation propagates.
func (l *Loop) SyncAccount(ctx context.Context, store *utxostore.Store, accountPKH digest.Digest) error {
	if err := l.limiter.Wait(ctx, accountPKH.String()); err != nil {
		return err
	}

	var fetched []note.Note
	err := Retry(ctx, l.retry, func() error {
		var fetchErr error
		fetched, fetchErr = FetchAccountNotes(ctx, l.rpc, accountPKH)
		return fetchErr
	})
	if err != nil {
		l.logger.ErrorAttrs("syncloop: sync fetch failed, retrying next pass",
			slog.String("account", accountPKH.String()), slog.String("error", err.Error()))
		return nil
	}

	fetchedUTXOs := make([]utxostore.FetchedUTXO, len(fetched))
	for i, n := range fetched {
		fetchedUTXOs[i] = utxostore.FetchedUTXO{NoteID: n.ID(), Note: n}
	}

	diff := utxostore.Diff(store.Notes(), fetchedUTXOs, store.Transactions())
	l.logger.DebugAttrs("syncloop: diff computed",
		slog.Int("new", len(diff.NewUTXOs)),
		slog.Int("still_unspent", len(diff.StillUnspent)),
		slog.Int("now_spent", len(diff.NowSpent)))

	if err := store.ApplySyncDiff(diff, time.Now(), l.txExpiry); err != nil {
		l.logger.ErrorAttrs("syncloop: applying sync diff", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// FetchAccountNotes queries the chain for every note an account can
// spend: directly by pkh, plus the simple and coinbase convenience
// first-names (spec §4.4), de-duplicated by note ID. Exported so
// internal/engine's chain-sourced get_balance can share this logic
// instead of re-deriving it.
func FetchAccountNotes(ctx context.Context, rpc rpcclient.Handle, accountPKH digest.Digest) ([]note.Note, error) {
	byPKH, err := rpc.QueryUTXOsByPKH(ctx, accountPKH)
	if err != nil {
		return nil, err
	}

	simple, err := rpc.QueryUTXOsByFirstName(ctx, note.SimpleFirstName(accountPKH))
	if err != nil {
		return nil, err
	}

	coinbase, err := rpc.QueryUTXOsByFirstName(ctx, note.CoinbaseFirstName(accountPKH))
	if err != nil {
		return nil, err
	}

	seen := make(map[digest.Digest]bool)
	var out []note.Note
	for _, set := range [][]note.Note{byPKH, simple, coinbase} {
		for _, n := range set {
			id := n.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, n)
		}
	}
	return out, nil
}
