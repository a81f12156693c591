// Package store defines the interface to the derived graph index. The
// indexer issues named, parameterized mutations; the rankers issue typed
// reads. No multi-statement transactions are assumed: every mutation is an
// independent store operation.
package store

import (
	"context"
	"time"
)

// MutationName identifies one of the fixed mutation statements understood by
// every Store implementation.
type MutationName string

const (
	// Params: uri, cid, author, text, createdAt (time.Time).
	// Upserts the post and its author (follows_primed=false on create).
	MutCreatePost MutationName = "create_post"

	// Params: uri, cid, author, repostUri, createdAt (time.Time).
	// Like MutCreatePost but marks the post as a repost pointer.
	MutCreateRepost MutationName = "create_repost"

	// Params: uri. Deletes the post and all of its edges.
	MutDeletePost MutationName = "delete_post"

	// Params: uri, rootUri. Upserts a ROOT edge from a reply to its thread
	// root, creating a placeholder post for the root if needed.
	MutMergeRootEdge MutationName = "merge_root_edge"

	// Params: uri, parentUri. Upserts a PARENT edge from a reply to its
	// immediate parent.
	MutMergeParentEdge MutationName = "merge_parent_edge"

	// Params: author, subjectUri, kind (likes|replies|reposts).
	// Bumps bucket 0 of the interaction edge from author to the subject
	// post's author, creating the edge if absent. No-op when the subject
	// post is not indexed or the author interacted with their own post.
	MutBumpInteraction MutationName = "bump_interaction"

	// Params: uri, actor, subject. Upserts both accounts and a FOLLOW edge
	// carrying the event uri (empty for primed edges, which the upstream
	// follow list supplies without one).
	MutMergeFollow MutationName = "merge_follow"

	// Params: uri. Deletes the FOLLOW edge matched by event uri. Delete
	// events carry only a uri, never the two endpoints.
	MutDeleteFollowByURI MutationName = "delete_follow_by_uri"

	// Params: did. Marks the account's follow backfill as complete.
	MutSetFollowsPrimed MutationName = "set_follows_primed"

	// Params: cutoff (time.Time). Deletes every post indexed strictly
	// before the cutoff.
	MutPrunePosts MutationName = "prune_posts"

	// No params. Shifts every interaction edge's day buckets by one.
	MutShiftInteractionDays MutationName = "shift_interaction_days"
)

// Mutation is one named write against the index. Params keys match the
// parameter names documented on the MutationName constants.
type Mutation struct {
	Name   MutationName
	Params map[string]any
}

// CandidatePost is a feed candidate row. RepostURI is empty for original
// posts and names the original for repost pointers.
type CandidatePost struct {
	URI       string
	CID       string
	RepostURI string
	IndexedAt time.Time
}

// InteractionCounts is the rolling 7-day interaction edge toward one
// account. Index 0 is today, index 6 is six days ago.
type InteractionCounts struct {
	Subject string
	Likes   [InteractionDays]int64
	Replies [InteractionDays]int64
	Reposts [InteractionDays]int64
}

type Store interface {
	// Exec runs one named mutation. Implementations guarantee per-statement
	// atomicity only.
	Exec(ctx context.Context, m Mutation) error

	// FollowsPrimed reports whether the account's follow backfill has
	// completed. Unknown accounts report false.
	FollowsPrimed(ctx context.Context, did string) (bool, error)

	// RecentFollowedPosts returns non-reply posts authored by accounts the
	// requester follows, indexed after since, newest first, capped at limit.
	RecentFollowedPosts(ctx context.Context, did string, since time.Time, limit int) ([]CandidatePost, error)

	// FollowedInteractions returns the requester's interaction edges toward
	// accounts they currently follow.
	FollowedInteractions(ctx context.Context, did string) ([]InteractionCounts, error)

	// PostsByAuthors returns non-reply posts by the given authors, indexed
	// after since, newest first, capped at limit.
	PostsByAuthors(ctx context.Context, dids []string, since time.Time, limit int) ([]CandidatePost, error)
}
