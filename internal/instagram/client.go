// Package instagram defines the Instagram collaborator the outreach core talks to
// and its implementations
package instagram

import (
	"context"
	"errors"
	"time"
)

// Errors reported by clients
var (
	// ErrNotFound is returned when the user, post or thread does not exist
	ErrNotFound = errors.New("instagram resource not found")
	// ErrRateLimited is returned when Instagram throttles the session
	ErrRateLimited = errors.New("instagram rate limit reached")
	// ErrSessionInvalid is returned when the session cookie is rejected
	ErrSessionInvalid = errors.New("instagram session invalid")
)

// Session identifies the Instagram account a call is made as
type Session struct {
	AccountID uint   `json:"accountId"`
	Username  string `json:"username"`
	Cookie    string `json:"-"`
}

// User is the normalized author of a comment or message
type User struct {
	PK       string `json:"pk"`
	Username string `json:"username"`
	FullName string `json:"fullName"`
}

// Post is a normalized media item
type Post struct {
	ID      string `json:"id"`
	Code    string `json:"code"`
	Caption string `json:"caption"`
	// TakenAt is in unix seconds
	TakenAt      int64 `json:"takenAt"`
	LikeCount    int   `json:"likeCount"`
	CommentCount int   `json:"commentCount"`
}

// Time returns the post timestamp
func (p Post) Time() time.Time {
	return time.Unix(p.TakenAt, 0).UTC()
}

// Link returns the public URL of the post
func (p Post) Link() string {
	if p.Code == "" {
		return ""
	}
	return "https://www.instagram.com/p/" + p.Code + "/"
}

// Comment is a normalized comment on a post
type Comment struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// CreatedAt is in unix seconds
	CreatedAt int64 `json:"createdAt"`
	User      User  `json:"user"`
}

// Time returns the comment timestamp
func (c Comment) Time() time.Time {
	return time.Unix(c.CreatedAt, 0).UTC()
}

// Message is a normalized direct message in a thread
type Message struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	// FromMe is set for messages sent by the session account
	FromMe    bool  `json:"fromMe"`
	Timestamp int64 `json:"timestamp"`
}

// Time returns the message timestamp
func (m Message) Time() time.Time {
	return time.Unix(m.Timestamp, 0).UTC()
}

// Profile is the public profile of a user along with engagement aggregates
type Profile struct {
	PK             string  `json:"pk"`
	Username       string  `json:"username"`
	FullName       string  `json:"fullName"`
	Biography      string  `json:"biography"`
	ExternalURL    string  `json:"externalUrl"`
	FollowerCount  int     `json:"followerCount"`
	FollowingCount int     `json:"followingCount"`
	MediaCount     int     `json:"mediaCount"`
	IsVerified     bool    `json:"isVerified"`
	IsBusiness     bool    `json:"isBusiness"`
	IsPrivate      bool    `json:"isPrivate"`
	AvgLikes       float64 `json:"avgLikes"`
	AvgComments    float64 `json:"avgComments"`
	PostsPerWeek   float64 `json:"postsPerWeek"`
	// FirstPostAt approximates the account age, unix seconds, zero when unknown
	FirstPostAt int64 `json:"firstPostAt"`
}

// EngagementRate is the average interactions per post as a percentage of followers
func (p Profile) EngagementRate() float64 {
	if p.FollowerCount <= 0 {
		return 0
	}
	return (p.AvgLikes + p.AvgComments) / float64(p.FollowerCount) * 100
}

// AccountAgeDays estimates the account age from the first post
func (p Profile) AccountAgeDays(now time.Time) int {
	if p.FirstPostAt <= 0 {
		return 0
	}
	return int(now.Sub(time.Unix(p.FirstPostAt, 0)).Hours() / 24)
}

// SendResult acknowledges a sent direct message
type SendResult struct {
	ThreadID  string `json:"threadId"`
	MessageID string `json:"messageId"`
}

// Client is the set of Instagram capabilities used by the outreach core
type Client interface {
	// FetchRecentPosts returns up to limit of the latest posts of account, newest first
	FetchRecentPosts(ctx context.Context, s Session, account string, limit int) ([]Post, error)
	// FetchComments returns up to limit comments of a post
	FetchComments(ctx context.Context, s Session, postID string, limit int) ([]Comment, error)
	// FetchThreadMessages returns up to limit of the latest messages exchanged with username
	FetchThreadMessages(ctx context.Context, s Session, username string, limit int) ([]Message, error)
	FetchUserProfile(ctx context.Context, s Session, username string) (*Profile, error)
	SendDM(ctx context.Context, s Session, username, text string) (*SendResult, error)
}
