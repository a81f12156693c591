package bluej

import (
	"context"

	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/util"
	"github.com/bluesky-social/indigo/xrpc"
	"go.uber.org/ratelimit"

	"github.com/bluej-social/bluej/algos"
)

const followPageSize = 100

// XRPCFollowClient fetches follow lists from an appview over XRPC, paced so
// a burst of unprimed accounts can't hammer the upstream.
type XRPCFollowClient struct {
	cli *xrpc.Client
	rl  ratelimit.Limiter
}

func NewXRPCFollowClient(host string) *XRPCFollowClient {
	return &XRPCFollowClient{
		cli: &xrpc.Client{
			Host:   host,
			Client: util.RobustHTTPClient(),
		},
		rl: ratelimit.New(10),
	}
}

func (c *XRPCFollowClient) Follows(ctx context.Context, actor string, cursor string) (*algos.FollowPage, error) {
	c.rl.Take()

	out, err := bsky.GraphGetFollows(ctx, c.cli, actor, cursor, followPageSize)
	if err != nil {
		return nil, err
	}

	page := &algos.FollowPage{}
	for _, f := range out.Follows {
		page.DIDs = append(page.DIDs, f.Did)
	}
	if out.Cursor != nil {
		page.Cursor = *out.Cursor
	}
	return page, nil
}
