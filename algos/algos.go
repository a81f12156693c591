// Package algos implements the read-side feed algorithms. Each algorithm
// queries the graph index directly, applies its own ranking and pagination,
// and produces a feed skeleton.
package algos

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bluej-social/bluej/store"
)

const (
	ShortnameChaos     = "chaos"
	ShortnameFavorites = "favorites"
)

const reasonRepostType = "app.bsky.feed.defs#skeletonReasonRepost"

// ErrUnknownFeed is returned for a feed URI that doesn't map to an
// algorithm.
var ErrUnknownFeed = errors.New("unknown feed")

type ReasonRepost struct {
	Type   string `json:"$type"`
	Repost string `json:"repost"`
}

type FeedItem struct {
	Post   string        `json:"post"`
	Reason *ReasonRepost `json:"reason,omitempty"`
}

type Feed struct {
	Cursor *string    `json:"cursor,omitempty"`
	Feed   []FeedItem `json:"feed"`
}

type Request struct {
	Limit  int
	Cursor string
}

// FollowPage is one page of an account's follow list. An empty Cursor
// marks the final page.
type FollowPage struct {
	DIDs   []string
	Cursor string
}

// FollowListClient fetches an account's current follow list from the
// upstream network, used only for one-time backfill.
type FollowListClient interface {
	Follows(ctx context.Context, actor string, cursor string) (*FollowPage, error)
}

type handlerFunc func(ctx context.Context, req Request, requesterDID string) (*Feed, error)

type Algos struct {
	store    store.Store
	follows  FollowListClient
	seeds    *SeedCache
	logger   *slog.Logger
	now      func() time.Time
	hist     *prometheus.HistogramVec
	handlers map[string]handlerFunc
}

type Args struct {
	Store   store.Store
	Follows FollowListClient
	Seeds   *SeedCache
	Logger  *slog.Logger

	// Histogram observes per-request duration labeled by algo shortname.
	Histogram *prometheus.HistogramVec
}

func New(args *Args) *Algos {
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	a := &Algos{
		store:   args.Store,
		follows: args.Follows,
		seeds:   args.Seeds,
		logger:  args.Logger,
		now:     time.Now,
		hist:    args.Histogram,
	}
	a.handlers = map[string]handlerFunc{
		ShortnameChaos:     a.chaos,
		ShortnameFavorites: a.favorites,
	}
	return a
}

// Shortnames lists the registered algorithms.
func (a *Algos) Shortnames() []string {
	return []string{ShortnameChaos, ShortnameFavorites}
}

// Handle dispatches to the named algorithm. Cursor errors propagate so the
// caller can reject the request; any other failure is swallowed into an
// empty feed — a broken feed call must never crash the serving loop.
func (a *Algos) Handle(ctx context.Context, shortname string, req Request, requesterDID string) (*Feed, error) {
	h, ok := a.handlers[shortname]
	if !ok {
		return nil, ErrUnknownFeed
	}

	start := a.now()
	feed, err := h(ctx, req, requesterDID)
	if a.hist != nil {
		a.hist.WithLabelValues(shortname).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, ErrMalformedCursor) || errors.Is(err, ErrCursorOwnership) {
			return nil, err
		}
		a.logger.Error("feed request failed", "algo", shortname, "did", requesterDID, "error", err)
		return &Feed{Feed: []FeedItem{}}, nil
	}
	return feed, nil
}

// primeFollows backfills the requester's follow list on first sight, for
// relationships created before this service started consuming the firehose.
func (a *Algos) primeFollows(ctx context.Context, did string) error {
	primed, err := a.store.FollowsPrimed(ctx, did)
	if err != nil {
		return err
	}
	if primed {
		return nil
	}

	a.logger.Info("priming follows", "did", did)

	count := 0
	cursor := ""
	for {
		page, err := a.follows.Follows(ctx, did, cursor)
		if err != nil {
			return err
		}
		for _, subject := range page.DIDs {
			err := a.store.Exec(ctx, store.Mutation{
				Name: store.MutMergeFollow,
				Params: map[string]any{
					"uri":     "",
					"actor":   did,
					"subject": subject,
				},
			})
			if err != nil {
				return err
			}
		}
		count += len(page.DIDs)
		if page.Cursor == "" {
			break
		}
		cursor = page.Cursor
	}

	err = a.store.Exec(ctx, store.Mutation{
		Name:   store.MutSetFollowsPrimed,
		Params: map[string]any{"did": did},
	})
	if err != nil {
		return err
	}

	a.logger.Info("follows primed", "did", did, "count", count)
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 600 {
		return 600
	}
	return limit
}

func feedItem(p postData) FeedItem {
	if p.repostURI != "" {
		return FeedItem{
			Post: p.repostURI,
			Reason: &ReasonRepost{
				Type:   reasonRepostType,
				Repost: p.uri,
			},
		}
	}
	return FeedItem{Post: p.uri}
}
