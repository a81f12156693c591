package bluej

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluej-social/bluej/store"
	"github.com/bluej-social/bluej/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBlueJ(t *testing.T, st store.Store) *BlueJ {
	t.Helper()
	b, err := New(context.Background(), &Args{
		Logger: testLogger(),
		Store:  st,
	})
	require.NoError(t, err)
	return b
}

func mergeFollow(t *testing.T, st store.Store, uri, actor, subject string) {
	t.Helper()
	require.NoError(t, st.Exec(context.Background(), store.Mutation{
		Name:   store.MutMergeFollow,
		Params: map[string]any{"uri": uri, "actor": actor, "subject": subject},
	}))
}

func TestCommitReplyCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	mergeFollow(t, st, "at://f/1", "did:plc:reader", "did:plc:alice")
	mergeFollow(t, st, "at://f/2", "did:plc:reader", "did:plc:bob")
	mergeFollow(t, st, "at://f/3", "did:plc:bob", "did:plc:alice")

	parent := "at://did:plc:alice/app.bsky.feed.post/parent"
	reply := "at://did:plc:bob/app.bsky.feed.post/reply"

	b.handleCommit(ctx, &commitOps{postCreates: []postCreateOp{
		{uri: parent, cid: "bafyparent", author: "did:plc:alice", text: "hi", createdAt: now},
	}})
	b.handleCommit(ctx, &commitOps{postCreates: []postCreateOp{
		{uri: reply, cid: "bafyreply", author: "did:plc:bob", text: "hey", createdAt: now, rootURI: parent, parentURI: parent},
	}})

	// The reply counts as an interaction with the parent's author.
	counts, err := st.FollowedInteractions(ctx, "did:plc:bob")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.Equal(t, "did:plc:alice", counts[0].Subject)
	require.Equal(t, int64(1), counts[0].Replies[0])

	// Only the top-level post is a feed candidate.
	posts, err := st.RecentFollowedPosts(ctx, "did:plc:reader", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, parent, posts[0].URI)
}

func TestCommitRepostCreate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	mergeFollow(t, st, "at://f/1", "did:plc:reader", "did:plc:bob")
	mergeFollow(t, st, "at://f/2", "did:plc:bob", "did:plc:alice")

	subject := "at://did:plc:alice/app.bsky.feed.post/1"
	repost := "at://did:plc:bob/app.bsky.feed.repost/1"

	b.handleCommit(ctx, &commitOps{postCreates: []postCreateOp{
		{uri: subject, cid: "bafysubject", author: "did:plc:alice", createdAt: now},
	}})
	b.handleCommit(ctx, &commitOps{repostCreates: []repostCreateOp{
		{uri: repost, cid: "bafyrepost", author: "did:plc:bob", subjectURI: subject, createdAt: now},
	}})

	posts, err := st.RecentFollowedPosts(ctx, "did:plc:reader", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	require.Equal(t, repost, posts[0].URI)
	require.Equal(t, subject, posts[0].RepostURI)

	counts, err := st.FollowedInteractions(ctx, "did:plc:bob")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.Equal(t, int64(1), counts[0].Reposts[0])
}

func TestCommitLikeAfterPostInSameCommit(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	mergeFollow(t, st, "at://f/1", "did:plc:bob", "did:plc:alice")

	uri := "at://did:plc:alice/app.bsky.feed.post/1"
	// Creates apply before likes within a commit, so a like landing in the
	// same commit as its subject still finds it.
	b.handleCommit(ctx, &commitOps{
		postCreates: []postCreateOp{{uri: uri, cid: "bafy1", author: "did:plc:alice", createdAt: now}},
		likeCreates: []likeCreateOp{{author: "did:plc:bob", subjectURI: uri}},
	})

	counts, err := st.FollowedInteractions(ctx, "did:plc:bob")
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.Equal(t, int64(1), counts[0].Likes[0])
}

func TestCommitSelfLikeIgnored(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	mergeFollow(t, st, "at://f/1", "did:plc:alice", "did:plc:alice")

	uri := "at://did:plc:alice/app.bsky.feed.post/1"
	b.handleCommit(ctx, &commitOps{
		postCreates: []postCreateOp{{uri: uri, cid: "bafy1", author: "did:plc:alice", createdAt: now}},
		likeCreates: []likeCreateOp{{author: "did:plc:alice", subjectURI: uri}},
	})

	counts, err := st.FollowedInteractions(ctx, "did:plc:alice")
	require.NoError(t, err)
	require.Empty(t, counts)
}

func TestCommitFollowLifecycle(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	followURI := "at://did:plc:reader/app.bsky.graph.follow/abc"
	b.handleCommit(ctx, &commitOps{followCreates: []followCreateOp{
		{uri: followURI, actor: "did:plc:reader", subject: "did:plc:alice"},
	}})
	b.handleCommit(ctx, &commitOps{postCreates: []postCreateOp{
		{uri: "at://did:plc:alice/app.bsky.feed.post/1", cid: "bafy1", author: "did:plc:alice", createdAt: now},
	}})

	posts, err := st.RecentFollowedPosts(ctx, "did:plc:reader", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	// Unfollow events carry only the record uri.
	b.handleCommit(ctx, &commitOps{followDeletes: []deleteOp{{uri: followURI}}})

	posts, err = st.RecentFollowedPosts(ctx, "did:plc:reader", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, posts)
}

func TestCommitPostDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	st := memstore.New()
	b := newTestBlueJ(t, st)

	mergeFollow(t, st, "at://f/1", "did:plc:reader", "did:plc:alice")

	uri := "at://did:plc:alice/app.bsky.feed.post/1"
	b.handleCommit(ctx, &commitOps{postCreates: []postCreateOp{
		{uri: uri, cid: "bafy1", author: "did:plc:alice", createdAt: now},
	}})
	b.handleCommit(ctx, &commitOps{postDeletes: []deleteOp{{uri: uri}}})

	posts, err := st.RecentFollowedPosts(ctx, "did:plc:reader", now.Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, posts)
}
