package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSession = Session{AccountID: 1, Username: "agency", Cookie: "sessionid=abc"}

func newGateway(t *testing.T, h http.HandlerFunc) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewGatewayClient(GatewayOptions{BaseURL: srv.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewGatewayClientValidatesURL(t *testing.T) {
	_, err := NewGatewayClient(GatewayOptions{})
	assert.Error(t, err)
	_, err = NewGatewayClient(GatewayOptions{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestFetchRecentPosts(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/users/bodrum.emlak/posts", r.URL.Path)
		assert.Equal(t, "12", r.URL.Query().Get("limit"))
		assert.Equal(t, "agency", r.Header.Get(HeaderAccount))
		assert.Equal(t, "sessionid=abc", r.Header.Get(HeaderSession))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"posts": []Post{{ID: "p1", Code: "C0de", Caption: "Yalıkavak villa", TakenAt: 1714560000}},
		})
	})

	posts, err := c.FetchRecentPosts(context.Background(), testSession, "bodrum.emlak", 12)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "https://www.instagram.com/p/C0de/", posts[0].Link())
	assert.True(t, time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC).Equal(posts[0].Time()))
}

func TestFetchCommentsAndThread(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/posts/p1/comments":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"comments": []Comment{{ID: "c1", Text: "fiyat?", CreatedAt: 100, User: User{PK: "42", Username: "buyer"}}},
			})
		case "/threads/buyer/messages":
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"messages": []Message{{ID: "m1", Text: "merhaba", FromMe: false, Timestamp: 200}},
			})
		default:
			writeJSON(w, http.StatusNotFound, gatewayError{Error: "no route"})
		}
	})

	comments, err := c.FetchComments(context.Background(), testSession, "p1", 100)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "42", comments[0].User.PK)

	msgs, err := c.FetchThreadMessages(context.Background(), testSession, "buyer", 20)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.False(t, msgs[0].FromMe)
}

func TestSendDM(t *testing.T) {
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/direct/send", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buyer", body["username"])
		assert.Equal(t, "Merhaba!", body["text"])
		writeJSON(w, http.StatusOK, SendResult{ThreadID: "t1", MessageID: "m9"})
	})

	res, err := c.SendDM(context.Background(), testSession, "buyer", "Merhaba!")
	require.NoError(t, err)
	assert.Equal(t, "m9", res.MessageID)
}

func TestGatewayErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{status: http.StatusNotFound, want: ErrNotFound},
		{status: http.StatusTooManyRequests, want: ErrRateLimited},
		{status: http.StatusUnauthorized, want: ErrSessionInvalid},
	}
	for _, tt := range tests {
		c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tt.status, gatewayError{Error: "nope"})
		})
		_, err := c.FetchUserProfile(context.Background(), testSession, "ghost")
		assert.ErrorIs(t, err, tt.want)
	}
}

func TestBreakerIgnoresNotFound(t *testing.T) {
	var calls int32
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusNotFound, gatewayError{Error: "no such user"})
	})
	for i := 0; i < 10; i++ {
		_, err := c.FetchUserProfile(context.Background(), testSession, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	}
	assert.Equal(t, int32(10), atomic.LoadInt32(&calls))
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	c := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, gatewayError{Error: "upstream"})
	})
	for i := 0; i < 10; i++ {
		_, err := c.FetchComments(context.Background(), testSession, "p1", 10)
		assert.Error(t, err)
	}
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}

func TestProfileDerivedFields(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	p := Profile{FollowerCount: 2000, AvgLikes: 90, AvgComments: 10, FirstPostAt: now.AddDate(0, 0, -400).Unix()}
	assert.InDelta(t, 5.0, p.EngagementRate(), 0.0001)
	assert.Equal(t, 400, p.AccountAgeDays(now))
	assert.Zero(t, Profile{}.EngagementRate())
	assert.Zero(t, Profile{}.AccountAgeDays(now))
}

func TestMockClientRecordsSends(t *testing.T) {
	m := &MockClient{}
	_, err := m.SendDM(context.Background(), testSession, "buyer", "hi")
	require.NoError(t, err)
	require.Len(t, m.Sent(), 1)
	assert.Equal(t, "buyer", m.Sent()[0].Username)

	_, err = m.FetchUserProfile(context.Background(), testSession, "x")
	assert.ErrorIs(t, err, ErrNotFound)
}
