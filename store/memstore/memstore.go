// Package memstore is an in-memory implementation of the graph index,
// suitable for small deployments and tests. Per-mutation atomicity is
// provided by a single mutex; there are no cross-mutation transactions,
// matching the store contract.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bluej-social/bluej/store"
)

type account struct {
	followsPrimed bool
}

type post struct {
	uri       string
	cid       string
	author    string
	text      string
	repostURI string
	rootURI   string
	parentURI string
	createdAt time.Time
	indexedAt time.Time
}

// placeholder posts exist only as edge targets (merged root/parent uris)
// and carry no index timestamp.
func (p *post) placeholder() bool {
	return p.indexedAt.IsZero()
}

type followKey struct {
	actor   string
	subject string
	uri     string
}

type edgeKey struct {
	actor   string
	subject string
}

type interaction struct {
	likes   [store.InteractionDays]int64
	replies [store.InteractionDays]int64
	reposts [store.InteractionDays]int64
}

type Store struct {
	mu           sync.Mutex
	now          func() time.Time
	accounts     map[string]*account
	posts        map[string]*post
	follows      map[followKey]struct{}
	interactions map[edgeKey]*interaction
}

func New() *Store {
	return &Store{
		now:          time.Now,
		accounts:     map[string]*account{},
		posts:        map[string]*post{},
		follows:      map[followKey]struct{}{},
		interactions: map[edgeKey]*interaction{},
	}
}

// SetClock overrides the index-timestamp clock. Test hook.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Exec(ctx context.Context, m store.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m.Name {
	case store.MutCreatePost:
		return s.createPost(m.Params, false)
	case store.MutCreateRepost:
		return s.createPost(m.Params, true)
	case store.MutDeletePost:
		uri, err := strParam(m, "uri")
		if err != nil {
			return err
		}
		s.detachDelete(uri)
		return nil
	case store.MutMergeRootEdge:
		return s.mergeEdge(m, "rootUri")
	case store.MutMergeParentEdge:
		return s.mergeEdge(m, "parentUri")
	case store.MutBumpInteraction:
		return s.bumpInteraction(m.Params)
	case store.MutMergeFollow:
		return s.mergeFollow(m.Params)
	case store.MutDeleteFollowByURI:
		uri, err := strParam(m, "uri")
		if err != nil {
			return err
		}
		for k := range s.follows {
			if k.uri == uri {
				delete(s.follows, k)
			}
		}
		return nil
	case store.MutSetFollowsPrimed:
		did, err := strParam(m, "did")
		if err != nil {
			return err
		}
		s.mergeAccount(did).followsPrimed = true
		return nil
	case store.MutPrunePosts:
		cutoff, ok := m.Params["cutoff"].(time.Time)
		if !ok {
			return fmt.Errorf("mutation %s: missing cutoff", m.Name)
		}
		for uri, p := range s.posts {
			if !p.placeholder() && p.indexedAt.Before(cutoff) {
				s.detachDelete(uri)
			}
		}
		return nil
	case store.MutShiftInteractionDays:
		for _, i := range s.interactions {
			i.likes = store.ShiftDay(i.likes)
			i.replies = store.ShiftDay(i.replies)
			i.reposts = store.ShiftDay(i.reposts)
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation %q", m.Name)
	}
}

func (s *Store) createPost(params map[string]any, repost bool) error {
	uri, ok := params["uri"].(string)
	if !ok || uri == "" {
		return fmt.Errorf("create post: missing uri")
	}
	author, _ := params["author"].(string)
	p := s.posts[uri]
	if p == nil {
		p = &post{uri: uri}
		s.posts[uri] = p
	}
	p.cid, _ = params["cid"].(string)
	p.author = author
	p.text, _ = params["text"].(string)
	if repost {
		p.repostURI, _ = params["repostUri"].(string)
	}
	if t, ok := params["createdAt"].(time.Time); ok {
		p.createdAt = t
	}
	p.indexedAt = s.now()
	s.mergeAccount(author)
	return nil
}

// detachDelete removes the post and every edge touching it, including the
// PARENT/ROOT edges of replies that pointed at it.
func (s *Store) detachDelete(uri string) {
	delete(s.posts, uri)
	for _, p := range s.posts {
		if p.rootURI == uri {
			p.rootURI = ""
		}
		if p.parentURI == uri {
			p.parentURI = ""
		}
	}
}

func (s *Store) mergeEdge(m store.Mutation, key string) error {
	uri, err := strParam(m, "uri")
	if err != nil {
		return err
	}
	target, ok := m.Params[key].(string)
	if !ok || target == "" {
		return fmt.Errorf("mutation %s: missing %s", m.Name, key)
	}
	p := s.posts[uri]
	if p == nil {
		p = &post{uri: uri}
		s.posts[uri] = p
	}
	if s.posts[target] == nil {
		s.posts[target] = &post{uri: target}
	}
	if key == "rootUri" {
		p.rootURI = target
	} else {
		p.parentURI = target
	}
	return nil
}

func (s *Store) bumpInteraction(params map[string]any) error {
	author, _ := params["author"].(string)
	subjectURI, _ := params["subjectUri"].(string)
	kind := store.InteractionKind(fmt.Sprint(params["kind"]))
	if author == "" || subjectURI == "" {
		return fmt.Errorf("bump interaction: missing author or subjectUri")
	}
	subject := s.posts[subjectURI]
	if subject == nil || subject.author == "" || subject.author == author {
		// Not indexed, or a self-interaction. Matches the original's MATCH
		// plus did-inequality guard.
		return nil
	}
	s.mergeAccount(author)
	k := edgeKey{actor: author, subject: subject.author}
	i := s.interactions[k]
	if i == nil {
		likes, replies, reposts := store.NewBuckets(kind)
		s.interactions[k] = &interaction{likes: likes, replies: replies, reposts: reposts}
		return nil
	}
	switch kind {
	case store.KindLikes:
		i.likes = store.BumpToday(i.likes)
	case store.KindReplies:
		i.replies = store.BumpToday(i.replies)
	case store.KindReposts:
		i.reposts = store.BumpToday(i.reposts)
	default:
		return fmt.Errorf("bump interaction: unknown kind %q", kind)
	}
	return nil
}

func (s *Store) mergeFollow(params map[string]any) error {
	actor, _ := params["actor"].(string)
	subject, _ := params["subject"].(string)
	if actor == "" || subject == "" {
		return fmt.Errorf("merge follow: missing actor or subject")
	}
	uri, _ := params["uri"].(string)
	s.mergeAccount(actor)
	s.mergeAccount(subject)
	s.follows[followKey{actor: actor, subject: subject, uri: uri}] = struct{}{}
	return nil
}

func (s *Store) mergeAccount(did string) *account {
	if did == "" {
		return &account{}
	}
	a := s.accounts[did]
	if a == nil {
		a = &account{}
		s.accounts[did] = a
	}
	return a
}

func (s *Store) FollowsPrimed(ctx context.Context, did string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accounts[did]
	return a != nil && a.followsPrimed, nil
}

func (s *Store) RecentFollowedPosts(ctx context.Context, did string, since time.Time, limit int) ([]store.CandidatePost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidatePosts(s.followees(did), since, limit), nil
}

func (s *Store) FollowedInteractions(ctx context.Context, did string) ([]store.InteractionCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	followed := s.followees(did)
	var out []store.InteractionCounts
	for k, i := range s.interactions {
		if k.actor != did {
			continue
		}
		if _, ok := followed[k.subject]; !ok {
			continue
		}
		out = append(out, store.InteractionCounts{
			Subject: k.subject,
			Likes:   i.likes,
			Replies: i.replies,
			Reposts: i.reposts,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Subject < out[b].Subject })
	return out, nil
}

func (s *Store) PostsByAuthors(ctx context.Context, dids []string, since time.Time, limit int) ([]store.CandidatePost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	authors := map[string]struct{}{}
	for _, d := range dids {
		authors[d] = struct{}{}
	}
	return s.candidatePosts(authors, since, limit), nil
}

func (s *Store) followees(did string) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range s.follows {
		if k.actor == did {
			out[k.subject] = struct{}{}
		}
	}
	return out
}

// candidatePosts returns indexed, non-reply posts by the given authors,
// newest first.
func (s *Store) candidatePosts(authors map[string]struct{}, since time.Time, limit int) []store.CandidatePost {
	var out []store.CandidatePost
	for _, p := range s.posts {
		if p.placeholder() || p.parentURI != "" {
			continue
		}
		if _, ok := authors[p.author]; !ok {
			continue
		}
		if !p.indexedAt.After(since) {
			continue
		}
		out = append(out, store.CandidatePost{
			URI:       p.uri,
			CID:       p.cid,
			RepostURI: p.repostURI,
			IndexedAt: p.indexedAt,
		})
	}
	sort.Slice(out, func(a, b int) bool {
		if !out[a].IndexedAt.Equal(out[b].IndexedAt) {
			return out[a].IndexedAt.After(out[b].IndexedAt)
		}
		return out[a].URI < out[b].URI
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func strParam(m store.Mutation, key string) (string, error) {
	v, ok := m.Params[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("mutation %s: missing %s", m.Name, key)
	}
	return v, nil
}
