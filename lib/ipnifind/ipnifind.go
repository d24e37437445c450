package ipnifind

import (
	"context"
	"fmt"
	"time"

	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/ipni/go-libipni/find/client"
	"github.com/multiformats/go-multiaddr"
)

var log = logging.Logger("ipnifind")

const DefaultTimeout = 5 * time.Second

// Client looks up the providers of a CID in an IPNI indexer
type Client struct {
	c       *client.Client
	timeout time.Duration
}

func New(indexerURL string, timeout time.Duration) (*Client, error) {
	c, err := client.New(indexerURL)
	if err != nil {
		return nil, fmt.Errorf("creating ipni find client for %s: %w", indexerURL, err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{c: c, timeout: timeout}, nil
}

// FindProviders returns the addresses of every provider that announced the
// CID. A CID that the indexer doesn't know about yields an empty list.
// Error responses and malformed bodies are returned as errors.
func (c *Client) FindProviders(ctx context.Context, k cid.Cid) ([]multiaddr.Multiaddr, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	res, err := c.c.Find(ctx, k.Hash())
	if err != nil {
		return nil, fmt.Errorf("finding providers for %s: %w", k, err)
	}

	var addrs []multiaddr.Multiaddr
	for _, mhr := range res.MultihashResults {
		for _, pr := range mhr.ProviderResults {
			if pr.Provider == nil {
				continue
			}
			addrs = append(addrs, pr.Provider.Addrs...)
		}
	}
	log.Debugw("ipni lookup", "cid", k, "addrs", len(addrs))
	return addrs, nil
}

// ContainsAddr returns true if want is one of addrs
func ContainsAddr(addrs []multiaddr.Multiaddr, want multiaddr.Multiaddr) bool {
	for _, a := range addrs {
		if a.Equal(want) {
			return true
		}
	}
	return false
}
