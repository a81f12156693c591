package bluej

import (
	"context"
	"fmt"
	"time"

	"github.com/araddon/dateparse"
	"github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"

	"github.com/bluej-social/bluej/store"
)

func (b *BlueJ) handlePostCreate(ctx context.Context, op postCreateOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name: store.MutCreatePost,
		Params: map[string]any{
			"uri":       op.uri,
			"cid":       op.cid,
			"author":    op.author,
			"text":      op.text,
			"createdAt": op.createdAt,
		},
	})

	if op.rootURI != "" {
		b.queue.Submit(ctx, store.Mutation{
			Name: store.MutMergeRootEdge,
			Params: map[string]any{
				"uri":     op.uri,
				"rootUri": op.rootURI,
			},
		})
	}

	if op.parentURI != "" {
		b.queue.Submit(ctx, store.Mutation{
			Name: store.MutMergeParentEdge,
			Params: map[string]any{
				"uri":       op.uri,
				"parentUri": op.parentURI,
			},
		})
		// A reply is an interaction with the parent's author.
		b.queue.Submit(ctx, store.Mutation{
			Name: store.MutBumpInteraction,
			Params: map[string]any{
				"author":     op.author,
				"subjectUri": op.parentURI,
				"kind":       string(store.KindReplies),
			},
		})
	}
}

func (b *BlueJ) handleRepostCreate(ctx context.Context, op repostCreateOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name: store.MutCreateRepost,
		Params: map[string]any{
			"uri":       op.uri,
			"cid":       op.cid,
			"author":    op.author,
			"repostUri": op.subjectURI,
			"createdAt": op.createdAt,
		},
	})

	b.queue.Submit(ctx, store.Mutation{
		Name: store.MutBumpInteraction,
		Params: map[string]any{
			"author":     op.author,
			"subjectUri": op.subjectURI,
			"kind":       string(store.KindReposts),
		},
	})
}

func (b *BlueJ) handleFollowCreate(ctx context.Context, op followCreateOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name: store.MutMergeFollow,
		Params: map[string]any{
			"uri":     op.uri,
			"actor":   op.actor,
			"subject": op.subject,
		},
	})
}

func (b *BlueJ) handleLikeCreate(ctx context.Context, op likeCreateOp) {
	b.queue.Submit(ctx, store.Mutation{
		Name: store.MutBumpInteraction,
		Params: map[string]any{
			"author":     op.author,
			"subjectUri": op.subjectURI,
			"kind":       string(store.KindLikes),
		},
	})
}

func parseTimeFromRecord(rec any, rkey string) (*time.Time, error) {
	var rkeyTime time.Time
	if rkey != "self" {
		rt, err := syntax.ParseTID(rkey)
		if err == nil {
			rkeyTime = rt.Time()
		}
	}
	switch rec := rec.(type) {
	case *bsky.FeedPost:
		t, err := dateparse.ParseAny(rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		if inRange(t) {
			return &t, nil
		}

		if rkeyTime.IsZero() || !inRange(rkeyTime) {
			return timePtr(time.Now()), nil
		}

		return &rkeyTime, nil
	case *bsky.FeedRepost:
		t, err := dateparse.ParseAny(rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		if inRange(t) {
			return timePtr(t), nil
		}

		if rkeyTime.IsZero() {
			return nil, fmt.Errorf("failed to get a useful timestamp from record")
		}

		return &rkeyTime, nil
	default:
		if !rkeyTime.IsZero() && inRange(rkeyTime) {
			return &rkeyTime, nil
		}
		return timePtr(time.Now()), nil
	}
}

func inRange(t time.Time) bool {
	now := time.Now()
	if t.Before(now) {
		return now.Sub(t) <= time.Hour*24*365*5
	}
	return t.Sub(now) <= time.Hour*24*200
}

func timePtr(t time.Time) *time.Time {
	return &t
}
