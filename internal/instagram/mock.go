package instagram

import (
	"context"
	"sync"
)

// MockClient is a Client whose behavior is set per method, unset methods return empty results
type MockClient struct {
	FetchRecentPostsFn    func(ctx context.Context, s Session, account string, limit int) ([]Post, error)
	FetchCommentsFn       func(ctx context.Context, s Session, postID string, limit int) ([]Comment, error)
	FetchThreadMessagesFn func(ctx context.Context, s Session, username string, limit int) ([]Message, error)
	FetchUserProfileFn    func(ctx context.Context, s Session, username string) (*Profile, error)
	SendDMFn              func(ctx context.Context, s Session, username, text string) (*SendResult, error)

	mu   sync.Mutex
	sent []SentDM
}

// SentDM records a successful SendDM call on the mock
type SentDM struct {
	Session  Session
	Username string
	Text     string
}

var _ Client = (*MockClient)(nil)

// FetchRecentPosts implements Client
func (m *MockClient) FetchRecentPosts(ctx context.Context, s Session, account string, limit int) ([]Post, error) {
	if m.FetchRecentPostsFn == nil {
		return nil, nil
	}
	return m.FetchRecentPostsFn(ctx, s, account, limit)
}

// FetchComments implements Client
func (m *MockClient) FetchComments(ctx context.Context, s Session, postID string, limit int) ([]Comment, error) {
	if m.FetchCommentsFn == nil {
		return nil, nil
	}
	return m.FetchCommentsFn(ctx, s, postID, limit)
}

// FetchThreadMessages implements Client
func (m *MockClient) FetchThreadMessages(ctx context.Context, s Session, username string, limit int) ([]Message, error) {
	if m.FetchThreadMessagesFn == nil {
		return nil, nil
	}
	return m.FetchThreadMessagesFn(ctx, s, username, limit)
}

// FetchUserProfile implements Client
func (m *MockClient) FetchUserProfile(ctx context.Context, s Session, username string) (*Profile, error) {
	if m.FetchUserProfileFn == nil {
		return nil, ErrNotFound
	}
	return m.FetchUserProfileFn(ctx, s, username)
}

// SendDM implements Client
func (m *MockClient) SendDM(ctx context.Context, s Session, username, text string) (*SendResult, error) {
	res := &SendResult{}
	if m.SendDMFn != nil {
		var err error
		if res, err = m.SendDMFn(ctx, s, username, text); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	m.sent = append(m.sent, SentDM{Session: s, Username: username, Text: text})
	m.mu.Unlock()
	return res, nil
}

// Sent returns the messages sent so far
func (m *MockClient) Sent() []SentDM {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentDM(nil), m.sent...)
}
