package algos

import (
	"context"
	"math"
	"sort"
	"strconv"
	"time"
)

// The chaos feed: posts by followed accounts in an order that looks random
// but is stable across a pagination session, re-shuffled on an explicit
// fresh full load.

const (
	chaosCandidateWindow = 12 * time.Hour
	chaosCandidateCap    = 500

	// chaosSentinel is the pre-first-page cursor position; every real
	// randId compares greater (randIds are 32-bit values).
	chaosSentinel = int64(math.MinInt64)
)

type postData struct {
	randID    int64
	uri       string
	repostURI string
}

// mix32 is the xorshift32 transform, after George Marsaglia.
func mix32(v int32) int32 {
	v ^= v << 13
	v ^= v >> 17
	v ^= v << 5
	return v
}

// hashCode hashes a content identifier with the session seed. The
// identifier is walked in reverse: identifiers minted close together share
// long prefixes, and reversing spreads their hashes. A final value of zero
// maps to one — zero is a fixed point of the mixer.
func hashCode(s string, seed int64) int64 {
	var h int32
	sd := int32(seed)
	for i := len(s) - 1; i >= 0; i-- {
		h = mix32(h*31 + int32(s[i]) + sd)
	}
	if h == 0 {
		return 1
	}
	return int64(h)
}

func (a *Algos) chaos(ctx context.Context, req Request, requesterDID string) (*Feed, error) {
	limit := clampLimit(req.Limit)

	randID := chaosSentinel
	hasCursor := req.Cursor != ""
	if hasCursor {
		r, err := decodeChaosCursor(req.Cursor, requesterDID)
		if err != nil {
			return nil, err
		}
		randID = r
	}

	a.logger.Debug("feed request", "algo", ShortnameChaos, "did", requesterDID, "limit", limit, "cursor", req.Cursor)

	if err := a.primeFollows(ctx, requesterDID); err != nil {
		return nil, err
	}

	since := a.now().Add(-chaosCandidateWindow)
	candidates, err := a.store.RecentFollowedPosts(ctx, requesterDID, since, chaosCandidateCap)
	if err != nil {
		return nil, err
	}

	seed := a.seeds.Get(requesterDID)
	// No cursor plus a large limit is a fresh full view rather than a
	// lightweight poll, so reorder everything.
	if !hasCursor && limit > 20 {
		seed = a.seeds.Bump(requesterDID)
	}

	posts := make([]postData, 0, len(candidates))
	for _, c := range candidates {
		posts = append(posts, postData{
			randID:    hashCode(c.CID, seed),
			uri:       c.URI,
			repostURI: c.RepostURI,
		})
	}

	sort.SliceStable(posts, func(i, j int) bool { return posts[i].randID < posts[j].randID })

	posts = collapseReposts(posts)

	position := 0
	for position < len(posts) {
		if posts[position].randID > randID {
			break
		}
		position++
	}

	end := position + limit
	if end > len(posts) {
		end = len(posts)
	}
	page := posts[position:end]
	if len(page) > 0 {
		randID = page[len(page)-1].randID
	}

	cursor := encodeCursor(strconv.FormatInt(randID, 10), requesterDID)

	items := make([]FeedItem, 0, len(page))
	for _, p := range page {
		items = append(items, feedItem(p))
	}

	return &Feed{Cursor: &cursor, Feed: items}, nil
}

// collapseReposts drops repost pointers whose original is already in the
// set, then keeps only the first pointer per target in sort order.
func collapseReposts(posts []postData) []postData {
	originals := map[string]struct{}{}
	for _, p := range posts {
		if p.repostURI == "" {
			originals[p.uri] = struct{}{}
		}
	}

	out := make([]postData, 0, len(posts))
	seen := map[string]struct{}{}
	for _, p := range posts {
		if p.repostURI == "" {
			out = append(out, p)
			continue
		}
		if _, ok := originals[p.repostURI]; ok {
			continue
		}
		if _, ok := seen[p.repostURI]; ok {
			continue
		}
		seen[p.repostURI] = struct{}{}
		out = append(out, p)
	}
	return out
}
