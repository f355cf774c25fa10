// Package rpcclient defines the engine's external RPC contract (spec §6)
// and a concrete JSON-RPC implementation of it. The spec scopes the
// transport out — "the implementation of that transport is out of
// scope" — but the engine still needs a Handle to program against, so
// this package gives it the narrowest one the spec names: four RPCs,
// nothing else.
package rpcclient

import (
	"context"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/nockwallet/walletengine/internal/digest"
	"github.com/nockwallet/walletengine/internal/note"
	"github.com/nockwallet/walletengine/pkg/werrors"
)

// Handle is the engine-facing RPC contract (spec §6). The sync loop and
// send pipeline depend on this interface, never on a concrete transport,
// so tests substitute an in-memory fake.
type Handle interface {
	QueryUTXOsByFirstName(ctx context.Context, firstName digest.Digest) ([]note.Note, error)
	QueryUTXOsByPKH(ctx context.Context, pkh digest.Digest) ([]note.Note, error)
	Broadcast(ctx context.Context, rawTxJam []byte) (digest.Digest, error)
	HealthCheck(ctx context.Context) error
}

// Client is a Handle backed by JSON-RPC, the way the teacher's
// internal/chain/eth/rpc client talks to an Ethereum node: a generic
// Call(method, params...) primitive wrapped in typed accessor methods.
// Unlike the teacher's hand-rolled HTTP/JSON-RPC plumbing, this uses
// go-ethereum's own rpc.Client directly — it already implements the same
// JSON-RPC 2.0 request/response/id-counter machinery the teacher built
// by hand, so there's no reason to re-roll it here.
type Client struct {
	rpc *rpc.Client
}

// Dial connects to a Nockchain-facing JSON-RPC endpoint at url.
func Dial(ctx context.Context, url string) (*Client, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, werrors.Wrap(err, "rpcclient: dial")
	}
	return &Client{rpc: c}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

type notesResult struct {
	Notes []note.Note `json:"notes"`
}

// QueryUTXOsByFirstName implements query_utxos_by_first_name.
func (c *Client) QueryUTXOsByFirstName(ctx context.Context, firstName digest.Digest) ([]note.Note, error) {
	var result notesResult
	if err := c.rpc.CallContext(ctx, &result, "query_utxos_by_first_name", firstName); err != nil {
		return nil, werrors.Wrap(err, "rpcclient: query_utxos_by_first_name")
	}
	return result.Notes, nil
}

// QueryUTXOsByPKH implements query_utxos_by_pkh (sum of simple and
// coinbase first-names, per spec §6).
func (c *Client) QueryUTXOsByPKH(ctx context.Context, pkh digest.Digest) ([]note.Note, error) {
	var result notesResult
	if err := c.rpc.CallContext(ctx, &result, "query_utxos_by_pkh", pkh); err != nil {
		return nil, werrors.Wrap(err, "rpcclient: query_utxos_by_pkh")
	}
	return result.Notes, nil
}

type broadcastResult struct {
	OutputTxID digest.Digest `json:"output_txid"`
}

// Broadcast implements broadcast(raw_tx_jam).
func (c *Client) Broadcast(ctx context.Context, rawTxJam []byte) (digest.Digest, error) {
	var result broadcastResult
	if err := c.rpc.CallContext(ctx, &result, "broadcast", rawTxJam); err != nil {
		return digest.Digest{}, werrors.Wrap(err, "rpcclient: broadcast")
	}
	return result.OutputTxID, nil
}

// HealthCheck implements health_check(), used by the connection-status
// indicator and the sync loop's 10-second liveness ticker.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.rpc.CallContext(ctx, nil, "health_check"); err != nil {
		return werrors.Wrap(err, "rpcclient: health_check")
	}
	return nil
}
