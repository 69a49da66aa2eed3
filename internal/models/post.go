package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PostTypeText  = "text"
	PostTypePhoto = "photo"
	PostTypePoll  = "poll"
)

var (
	ErrNoSuchOption = errors.New("poll option does not exist")
	ErrPollClosed   = errors.New("poll is closed")
	ErrNoPoll       = errors.New("post has no poll")
)

// Comment is embedded in its post document. Order is append-only, ascending
// by creation time.
type Comment struct {
	ID        string             `bson:"id" json:"id"`
	AuthorID  primitive.ObjectID `bson:"author_id" json:"author_id"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

type PollOption struct {
	ID    string               `bson:"id" json:"id"`
	Text  string               `bson:"text" json:"text"`
	Votes []primitive.ObjectID `bson:"votes" json:"votes"`
}

// Poll enforces exclusive choice: a user's vote appears in at most one
// option's Votes set.
type Poll struct {
	Question string       `bson:"question,omitempty" json:"question,omitempty"`
	Options  []PollOption `bson:"options" json:"options"`
	ClosesAt *time.Time   `bson:"closes_at,omitempty" json:"closes_at,omitempty"`
}

// Post is a group-scoped feed entry: text, photo or poll.
type Post struct {
	ID          primitive.ObjectID              `bson:"_id,omitempty" json:"id"`
	GroupID     primitive.ObjectID              `bson:"group_id" json:"group_id"`
	AuthorID    primitive.ObjectID              `bson:"author_id" json:"author_id"`
	Type        string                          `bson:"type" json:"type"`
	Content     string                          `bson:"content,omitempty" json:"content,omitempty"`
	Images      []string                        `bson:"images,omitempty" json:"images,omitempty"`
	Poll        *Poll                           `bson:"poll,omitempty" json:"poll,omitempty"`
	Reactions   map[string][]primitive.ObjectID `bson:"reactions" json:"reactions"`
	Comments    []Comment                       `bson:"comments" json:"comments"`
	Tags        []string                        `bson:"tags,omitempty" json:"tags,omitempty"`
	TaggedUsers []primitive.ObjectID            `bson:"tagged_users,omitempty" json:"tagged_users,omitempty"`
	Location    string                          `bson:"location,omitempty" json:"location,omitempty"`
	Favorites   []primitive.ObjectID            `bson:"favorites" json:"favorites"`
	CreatedAt   time.Time                       `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time                       `bson:"updated_at" json:"updated_at"`
}

// DerivePostType picks the post type with photo > poll > text priority.
func DerivePostType(imageCount int, poll *Poll) string {
	switch {
	case imageCount > 0:
		return PostTypePhoto
	case poll != nil:
		return PostTypePoll
	default:
		return PostTypeText
	}
}

// ToggleReaction adds userID under emoji if absent, removes it if present.
// An emoji key whose set becomes empty is deleted, not retained.
func (p *Post) ToggleReaction(emoji string, userID primitive.ObjectID) {
	if p.Reactions == nil {
		p.Reactions = make(map[string][]primitive.ObjectID)
	}

	users := p.Reactions[emoji]
	if containsID(users, userID) {
		filtered := users[:0]
		for _, id := range users {
			if id != userID {
				filtered = append(filtered, id)
			}
		}
		if len(filtered) == 0 {
			delete(p.Reactions, emoji)
		} else {
			p.Reactions[emoji] = filtered
		}
		return
	}

	p.Reactions[emoji] = append(users, userID)
}

// AppendComment adds a comment at the end of the list, preserving read order.
func (p *Post) AppendComment(c Comment) {
	p.Comments = append(p.Comments, c)
}

// HasFavorite reports whether userID has favorited the post.
func (p *Post) HasFavorite(userID primitive.ObjectID) bool {
	return containsID(p.Favorites, userID)
}

// Vote records an exclusive-choice vote: the user's vote is purged from
// every option before being inserted into the selected one, so changing a
// vote never leaves a stale entry behind.
func (p *Post) Vote(optionID string, userID primitive.ObjectID, now time.Time) error {
	if p.Poll == nil {
		return ErrNoPoll
	}
	if p.Poll.ClosesAt != nil && now.After(*p.Poll.ClosesAt) {
		return ErrPollClosed
	}

	selected := -1
	for i := range p.Poll.Options {
		if p.Poll.Options[i].ID == optionID {
			selected = i
			break
		}
	}
	if selected == -1 {
		return ErrNoSuchOption
	}

	for i := range p.Poll.Options {
		votes := p.Poll.Options[i].Votes
		filtered := votes[:0]
		for _, id := range votes {
			if id != userID {
				filtered = append(filtered, id)
			}
		}
		p.Poll.Options[i].Votes = filtered
	}
	p.Poll.Options[selected].Votes = append(p.Poll.Options[selected].Votes, userID)
	return nil
}
