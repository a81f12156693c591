package store

// InteractionDays is the fixed length of an interaction edge's day-bucket
// arrays. Bucket 0 is today.
const InteractionDays = 7

// InteractionKind names one of the three bucket arrays on an interaction
// edge. The values double as mutation params and store field names.
type InteractionKind string

const (
	KindLikes   InteractionKind = "likes"
	KindReplies InteractionKind = "replies"
	KindReposts InteractionKind = "reposts"
)

// BumpToday increments today's bucket.
func BumpToday(b [InteractionDays]int64) [InteractionDays]int64 {
	b[0]++
	return b
}

// ShiftDay rotates the buckets one day: today resets to zero and the
// oldest bucket falls off. Run once per calendar-day transition.
func ShiftDay(b [InteractionDays]int64) [InteractionDays]int64 {
	var out [InteractionDays]int64
	for i := 1; i < InteractionDays; i++ {
		out[i] = b[i-1]
	}
	return out
}

// NewBuckets returns bucket arrays for a freshly created interaction edge:
// all zero except today's bucket of the triggering kind.
func NewBuckets(kind InteractionKind) (likes, replies, reposts [InteractionDays]int64) {
	switch kind {
	case KindLikes:
		likes[0] = 1
	case KindReplies:
		replies[0] = 1
	case KindReposts:
		reposts[0] = 1
	}
	return
}
