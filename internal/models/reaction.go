package models

import "errors"

// Emoji is one of the reactions the client offers.
type Emoji string

var allowedEmoji = map[Emoji]struct{}{
	"❤️": {}, "😂": {}, "😮": {}, "😢": {}, "🔥": {}, "👍": {}, "😍": {}, "🙏": {},
}

var (
	ErrAlreadyReacted = errors.New("already reacted")
	ErrUnknownEmoji   = errors.New("unknown emoji")
)

func (e Emoji) Valid() bool {
	_, ok := allowedEmoji[e]
	return ok
}

// ReactionChange describes what Toggle did.
type ReactionChange int

const (
	ReactionAdded ReactionChange = iota + 1
	ReactionRemoved
)

// Reactions holds per-emoji counts and each user's single chosen emoji.
type Reactions struct {
	Counts map[Emoji]int    `json:"counts"`
	ByUser map[string]Emoji `json:"byUser"`
}

func NewReactions() Reactions {
	return Reactions{Counts: map[Emoji]int{}, ByUser: map[string]Emoji{}}
}

// Clone returns a deep copy; nil maps become empty maps.
func (r Reactions) Clone() Reactions {
	out := NewReactions()
	for k, v := range r.Counts {
		out.Counts[k] = v
	}
	for k, v := range r.ByUser {
		out.ByUser[k] = v
	}
	return out
}

// Toggle applies a user's click on emoji and returns the new state.
// Same emoji removes it, a different existing emoji is ErrAlreadyReacted,
// otherwise the reaction is added. The receiver is never modified.
func (r Reactions) Toggle(userID string, emoji Emoji) (Reactions, ReactionChange, error) {
	if !emoji.Valid() {
		return r, 0, ErrUnknownEmoji
	}
	current, has := r.ByUser[userID]
	if has && current != emoji {
		return r, 0, ErrAlreadyReacted
	}

	next := r.Clone()
	if has {
		if next.Counts[emoji] > 1 {
			next.Counts[emoji]--
		} else {
			delete(next.Counts, emoji)
		}
		delete(next.ByUser, userID)
		return next, ReactionRemoved, nil
	}

	next.Counts[emoji]++
	next.ByUser[userID] = emoji
	return next, ReactionAdded, nil
}

// Of returns the user's current reaction, if any.
func (r Reactions) Of(userID string) (Emoji, bool) {
	e, ok := r.ByUser[userID]
	return e, ok
}
