package algos

import (
	"context"
	"sort"
	"strconv"
	"time"
)

// The favorites feed: recent posts by the eight followed accounts the
// requester has interacted with the most over the rolling seven-day window.

const (
	favoritesTopAuthors      = 8
	favoritesCandidateWindow = 48 * time.Hour
	favoritesCandidateCap    = 1000
	favoritesPositionCap     = 600

	weightLikes   = 1
	weightReposts = 2
	weightReplies = 3
)

type authorScore struct {
	did   string
	score int64
}

func (a *Algos) favorites(ctx context.Context, req Request, requesterDID string) (*Feed, error) {
	limit := clampLimit(req.Limit)

	position := 0
	if req.Cursor != "" {
		p, err := decodeFavoritesCursor(req.Cursor, requesterDID)
		if err != nil {
			return nil, err
		}
		position = p
	}
	if position > favoritesPositionCap {
		position = favoritesPositionCap
	}

	a.logger.Debug("feed request", "algo", ShortnameFavorites, "did", requesterDID, "limit", limit, "cursor", req.Cursor)

	if err := a.primeFollows(ctx, requesterDID); err != nil {
		return nil, err
	}

	interactions, err := a.store.FollowedInteractions(ctx, requesterDID)
	if err != nil {
		return nil, err
	}

	scores := make([]authorScore, 0, len(interactions))
	for _, i := range interactions {
		var likes, replies, reposts int64
		for d := 0; d < len(i.Likes); d++ {
			likes += i.Likes[d]
			replies += i.Replies[d]
			reposts += i.Reposts[d]
		}
		scores = append(scores, authorScore{
			did:   i.Subject,
			score: likes*weightLikes + reposts*weightReposts + replies*weightReplies,
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].did < scores[j].did
	})
	if len(scores) > favoritesTopAuthors {
		scores = scores[:favoritesTopAuthors]
	}

	authors := make([]string, 0, len(scores))
	for _, s := range scores {
		authors = append(authors, s.did)
	}

	since := a.now().Add(-favoritesCandidateWindow)
	posts, err := a.store.PostsByAuthors(ctx, authors, since, favoritesCandidateCap)
	if err != nil {
		return nil, err
	}

	total := len(posts)
	start := position
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	page := posts[start:end]

	position += limit

	var cursor *string
	// Emit a next cursor only when enough remains to plausibly fill
	// another full page.
	if total > position+limit+1 {
		c := encodeCursor(requesterDID, strconv.Itoa(position))
		cursor = &c
	}

	items := make([]FeedItem, 0, len(page))
	for _, p := range page {
		items = append(items, feedItem(postData{uri: p.URI, repostURI: p.RepostURI}))
	}

	return &Feed{Cursor: cursor, Feed: items}, nil
}
