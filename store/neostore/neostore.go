// Package neostore implements the graph index on a Bolt graph database.
// Each named mutation maps to one Cypher statement; per-statement atomicity
// is the only consistency guarantee, matching the store contract.
package neostore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/bluej-social/bluej/store"
)

var mutationCypher = map[store.MutationName]string{
	store.MutCreatePost: `
		MERGE (post:Post {uri: $uri})
		SET post.cid = $cid, post.author = $author, post.text = $text,
			post.createdAt = $createdAt, post.indexedAt = datetime()
		MERGE (person:Person {did: $author})
		ON CREATE SET person.follows_primed = false
		MERGE (person)-[:AUTHOR_OF]->(post)`,

	store.MutCreateRepost: `
		MERGE (post:Post {uri: $uri})
		SET post.cid = $cid, post.author = $author, post.repostUri = $repostUri,
			post.createdAt = $createdAt, post.indexedAt = datetime()
		MERGE (person:Person {did: $author})
		ON CREATE SET person.follows_primed = false
		MERGE (person)-[:AUTHOR_OF]->(post)`,

	store.MutDeletePost: `
		MATCH (p:Post {uri: $uri})
		DETACH DELETE p`,

	store.MutMergeRootEdge: `
		MERGE (post1:Post {uri: $uri})
		MERGE (post2:Post {uri: $rootUri})
		MERGE (post1)-[:ROOT]->(post2)`,

	store.MutMergeParentEdge: `
		MERGE (post1:Post {uri: $uri})
		MERGE (post2:Post {uri: $parentUri})
		MERGE (post1)-[:PARENT]->(post2)`,

	store.MutMergeFollow: `
		MERGE (p1:Person {did: $actor})
		ON CREATE SET p1.follows_primed = false
		MERGE (p2:Person {did: $subject})
		MERGE (p1)-[:FOLLOW {uri: $uri}]->(p2)`,

	store.MutDeleteFollowByURI: `
		MATCH ()-[f:FOLLOW {uri: $uri}]->()
		DELETE f`,

	store.MutSetFollowsPrimed: `
		MERGE (p:Person {did: $did})
		SET p.follows_primed = true`,

	store.MutPrunePosts: `
		MATCH (post:Post)
		WHERE post.indexedAt IS NOT NULL AND post.indexedAt < $cutoff
		DETACH DELETE post`,

	store.MutShiftInteractionDays: `
		MATCH (:Person)-[i:INTERACTION]->(:Person)
		SET i.likes = [0] + i.likes[0..6],
			i.replies = [0] + i.replies[0..6],
			i.reposts = [0] + i.reposts[0..6]`,
}

// Interaction bumps create the edge with all-zero buckets except the
// triggering kind, and never touch self-interactions.
var bumpCypher = map[store.InteractionKind]string{
	store.KindLikes: `
		MATCH (p2:Person)-[:AUTHOR_OF]->(post:Post {uri: $subjectUri})
		WHERE p2.did <> $author
		MERGE (p1:Person {did: $author})
		ON CREATE SET p1.follows_primed = false
		MERGE (p1)-[i:INTERACTION]->(p2)
		ON CREATE SET i.likes = [1,0,0,0,0,0,0], i.replies = [0,0,0,0,0,0,0], i.reposts = [0,0,0,0,0,0,0]
		ON MATCH SET i.likes = [i.likes[0] + 1] + i.likes[1..7]`,

	store.KindReplies: `
		MATCH (p2:Person)-[:AUTHOR_OF]->(post:Post {uri: $subjectUri})
		WHERE p2.did <> $author
		MERGE (p1:Person {did: $author})
		ON CREATE SET p1.follows_primed = false
		MERGE (p1)-[i:INTERACTION]->(p2)
		ON CREATE SET i.likes = [0,0,0,0,0,0,0], i.replies = [1,0,0,0,0,0,0], i.reposts = [0,0,0,0,0,0,0]
		ON MATCH SET i.replies = [i.replies[0] + 1] + i.replies[1..7]`,

	store.KindReposts: `
		MATCH (p2:Person)-[:AUTHOR_OF]->(post:Post {uri: $subjectUri})
		WHERE p2.did <> $author
		MERGE (p1:Person {did: $author})
		ON CREATE SET p1.follows_primed = false
		MERGE (p1)-[i:INTERACTION]->(p2)
		ON CREATE SET i.likes = [0,0,0,0,0,0,0], i.replies = [0,0,0,0,0,0,0], i.reposts = [1,0,0,0,0,0,0]
		ON MATCH SET i.reposts = [i.reposts[0] + 1] + i.reposts[1..7]`,
}

type Store struct {
	driver neo4j.DriverWithContext
	logger *slog.Logger
}

type Args struct {
	URI      string
	Username string
	Password string
	Logger   *slog.Logger
}

func New(ctx context.Context, args *Args) (*Store, error) {
	if args.Logger == nil {
		args.Logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(args.URI, neo4j.BasicAuth(args.Username, args.Password, ""))
	if err != nil {
		return nil, err
	}
	return &Store{driver: driver, logger: args.Logger}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) Exec(ctx context.Context, m store.Mutation) error {
	cypher, ok := mutationCypher[m.Name]
	if m.Name == store.MutBumpInteraction {
		kind := store.InteractionKind(fmt.Sprint(m.Params["kind"]))
		cypher, ok = bumpCypher[kind]
	}
	if !ok {
		return fmt.Errorf("unknown mutation %q", m.Name)
	}
	return s.run(ctx, cypher, m.Params)
}

func (s *Store) run(ctx context.Context, cypher string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return err
	}
	_, err = result.Consume(ctx)
	return err
}

func (s *Store) FollowsPrimed(ctx context.Context, did string) (bool, error) {
	rows, err := s.query(ctx,
		`MATCH (p:Person {did: $did}) RETURN p.follows_primed`,
		map[string]any{"did": did})
	if err != nil {
		return false, err
	}
	if len(rows) == 0 {
		return false, nil
	}
	primed, _ := rows[0][0].(bool)
	return primed, nil
}

func (s *Store) RecentFollowedPosts(ctx context.Context, did string, since time.Time, limit int) ([]store.CandidatePost, error) {
	rows, err := s.query(ctx, `
		MATCH (me:Person {did: $did})-[:FOLLOW]->(f:Person)
		MATCH (f)-[:AUTHOR_OF]->(post:Post)
		WHERE post.indexedAt IS NOT NULL AND post.indexedAt > $since
			AND NOT (post)-[:PARENT]->(:Post)
		RETURN DISTINCT post.uri, post.cid, post.repostUri, post.indexedAt
		ORDER BY post.indexedAt DESC
		LIMIT $limit`,
		map[string]any{"did": did, "since": since, "limit": limit})
	if err != nil {
		return nil, err
	}
	return candidateRows(rows), nil
}

func (s *Store) FollowedInteractions(ctx context.Context, did string) ([]store.InteractionCounts, error) {
	rows, err := s.query(ctx, `
		MATCH (me:Person {did: $did})-[i:INTERACTION]->(other:Person)
		WHERE (me)-[:FOLLOW]->(other)
		RETURN DISTINCT other.did, i.likes, i.replies, i.reposts`,
		map[string]any{"did": did})
	if err != nil {
		return nil, err
	}

	out := make([]store.InteractionCounts, 0, len(rows))
	for _, row := range rows {
		subject, _ := row[0].(string)
		out = append(out, store.InteractionCounts{
			Subject: subject,
			Likes:   asBuckets(row[1]),
			Replies: asBuckets(row[2]),
			Reposts: asBuckets(row[3]),
		})
	}
	return out, nil
}

func (s *Store) PostsByAuthors(ctx context.Context, dids []string, since time.Time, limit int) ([]store.CandidatePost, error) {
	rows, err := s.query(ctx, `
		MATCH (p:Person)-[:AUTHOR_OF]->(post:Post)
		WHERE p.did IN $dids AND post.indexedAt IS NOT NULL
			AND post.indexedAt > $since
			AND NOT (post)-[:PARENT]->(:Post)
		RETURN post.uri, post.cid, post.repostUri, post.indexedAt
		ORDER BY post.indexedAt DESC
		LIMIT $limit`,
		map[string]any{"dids": dids, "since": since, "limit": limit})
	if err != nil {
		return nil, err
	}
	return candidateRows(rows), nil
}

func (s *Store) query(ctx context.Context, cypher string, params map[string]any) ([][]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for result.Next(ctx) {
		rows = append(rows, result.Record().Values)
	}
	return rows, result.Err()
}

func candidateRows(rows [][]any) []store.CandidatePost {
	out := make([]store.CandidatePost, 0, len(rows))
	for _, row := range rows {
		uri, _ := row[0].(string)
		cid, _ := row[1].(string)
		repostURI, _ := row[2].(string)
		out = append(out, store.CandidatePost{
			URI:       uri,
			CID:       cid,
			RepostURI: repostURI,
			IndexedAt: asTime(row[3]),
		})
	}
	return out
}

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case dbtype.LocalDateTime:
		return t.Time()
	default:
		return time.Time{}
	}
}

func asBuckets(v any) [store.InteractionDays]int64 {
	var out [store.InteractionDays]int64
	vals, ok := v.([]any)
	if !ok {
		return out
	}
	for i := 0; i < len(vals) && i < store.InteractionDays; i++ {
		n, _ := vals[i].(int64)
		out[i] = n
	}
	return out
}
