package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/instagram"
)

const villaCaption = "Bodrum Yalıkavak'ta satılık lüks villa, deniz manzaralı"

func TestMining_RunCreatesScoredGeoTaggedLead(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(_ context.Context, _ instagram.Session, postID string, _ int) ([]instagram.Comment, error) {
		require.Equal(t, "p1", postID)
		return []instagram.Comment{
			comment("c1", "u1", "ali", "Fiyat nedir?", ts.Now.Add(-12*time.Hour)),
			comment("c2", "u2", "ayse", "Çok güzel", ts.Now.Add(-time.Hour)),
			comment("c3", "", "ghost", "fiyat?", ts.Now.Add(-time.Hour)),
		}, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1", Code: "ABC123", Caption: villaCaption}},
		Keywords:    []string{"Fiyat", "fiyat", " "},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CommentsScanned)
	assert.Equal(t, 1, res.LeadsFound)
	assert.Equal(t, 1, res.LeadsSaved)
	assert.Equal(t, 1, res.LeadsCreated)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, []string{"p1"}, res.ProcessedPostIDs)

	lead, err := ts.LeadRepo.GetByIgUserID(ts.ctx, testWorkspace, "u1")
	require.NoError(t, err)
	assert.Equal(t, "ali", lead.IgUsername)
	assert.Equal(t, 100, lead.LeadScore)
	assert.Equal(t, []string{"fiyat"}, []string(lead.MatchedKeywords))
	assert.True(t, lead.HasTag(models.RealEstateLeadTag))
	assert.Equal(t, DefaultLeadSource, lead.Source)
	assert.Equal(t, "https://www.instagram.com/p/ABC123/", lead.CommentLink)
	require.NotNil(t, lead.City)
	assert.Equal(t, "Muğla", *lead.City)
	require.NotNil(t, lead.Town)
	assert.Equal(t, "Yalıkavak", *lead.Town)
	require.NotNil(t, lead.PropertySubType)
	assert.Equal(t, "Villa", *lead.PropertySubType)
	require.NotNil(t, lead.ListingType)
	assert.Equal(t, models.ListingSale, *lead.ListingType)
	require.NotNil(t, lead.IntentScore)
	assert.Equal(t, 40, *lead.IntentScore)
	assert.Contains(t, lead.Notes, "Comment: Fiyat nedir?")
	assert.Equal(t, 1, lead.CommentCount)
}

func TestMining_RecencyScores(t *testing.T) {
	ts := NewTestSetup(t)
	ages := map[string]time.Duration{
		"u1": 12 * time.Hour,
		"u2": 3 * 24 * time.Hour,
		"u3": 10 * 24 * time.Hour,
		"u4": 20 * 24 * time.Hour,
		"u5": 60 * 24 * time.Hour,
	}
	want := map[string]int{"u1": 100, "u2": 90, "u3": 70, "u4": 50, "u5": 30}
	ts.IG.FetchCommentsFn = func(context.Context, instagram.Session, string, int) ([]instagram.Comment, error) {
		var out []instagram.Comment
		for pk, age := range ages {
			out = append(out, comment("c-"+pk, pk, "user-"+pk, "fiyat?", ts.Now.Add(-age)))
		}
		return out, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1"}},
		Keywords:    []string{"fiyat"},
	})
	require.NoError(t, err)
	require.Equal(t, 5, res.LeadsSaved)

	for pk, score := range want {
		lead, err := ts.LeadRepo.GetByIgUserID(ts.ctx, testWorkspace, pk)
		require.NoError(t, err)
		assert.Equal(t, score, lead.LeadScore, pk)
	}
}

func TestMining_DeduplicatesUsersAcrossPosts(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(_ context.Context, _ instagram.Session, postID string, _ int) ([]instagram.Comment, error) {
		return []instagram.Comment{
			comment("c-"+postID, "u1", "ali", "fiyat ne kadar", ts.Now.Add(-time.Hour)),
		}, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}},
		Keywords:    []string{"fiyat"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.CommentsScanned)
	assert.Equal(t, 1, res.LeadsFound)
	assert.Equal(t, 1, res.LeadsSaved)

	count, err := ts.LeadRepo.Count(ts.ctx, testWorkspace)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMining_DeduplicatedUserKeepsAllKeywords(t *testing.T) {
	ts := NewTestSetup(t)
	texts := map[string]string{"p1": "fiyat nedir", "p2": "price please"}
	ts.IG.FetchCommentsFn = func(_ context.Context, _ instagram.Session, postID string, _ int) ([]instagram.Comment, error) {
		return []instagram.Comment{comment("c-"+postID, "u1", "ali", texts[postID], ts.Now.Add(-time.Hour))}, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1"}, {ID: "p2"}},
		Keywords:    []string{"fiyat", "price"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.LeadsFound)
	assert.Equal(t, 1, res.LeadsSaved)

	lead, err := ts.LeadRepo.GetByIgUserID(ts.ctx, testWorkspace, "u1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"fiyat", "price"}, []string(lead.MatchedKeywords))
	assert.Equal(t, "Comment: price please", lead.Notes)
}

func TestMining_PostFailureIsPartial(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(_ context.Context, _ instagram.Session, postID string, _ int) ([]instagram.Comment, error) {
		if postID == "broken" {
			return nil, instagram.ErrRateLimited
		}
		return []instagram.Comment{comment("c1", "u1", "ali", "fiyat?", ts.Now)}, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "ok"}, {ID: "broken"}},
		Keywords:    []string{"fiyat"},
	})
	require.NoError(t, err)
	require.Len(t, res.PostFailures, 1)
	assert.Equal(t, "broken", res.PostFailures[0].PostID)
	assert.Equal(t, []string{"ok"}, res.ProcessedPostIDs)
	assert.Equal(t, 1, res.LeadsSaved)
	assert.Equal(t, OutcomePartial, res.Outcome)
}

func TestMining_AllPostsFailing(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(context.Context, instagram.Session, string, int) ([]instagram.Comment, error) {
		return nil, errors.New("gateway down")
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1"}},
		Keywords:    []string{"fiyat"},
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Zero(t, res.LeadsFound)
}

func TestMining_DateRangeFilter(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(context.Context, instagram.Session, string, int) ([]instagram.Comment, error) {
		return []instagram.Comment{
			comment("c1", "u1", "old", "fiyat?", ts.Now.Add(-10*24*time.Hour)),
			comment("c2", "u2", "edge", "fiyat?", ts.Now.Add(-2*24*time.Hour)),
			comment("c3", "u3", "fresh", "fiyat?", ts.Now.Add(-time.Hour)),
		}, nil
	}

	res, err := ts.Mining.Run(ts.ctx, MiningRequest{
		WorkspaceID: testWorkspace,
		Posts:       []PostRef{{ID: "p1"}},
		Keywords:    []string{"fiyat"},
		DateRange:   &DateRange{From: ts.Now.Add(-2 * 24 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.LeadsFound)

	_, err = ts.LeadRepo.GetByIgUserID(ts.ctx, testWorkspace, "u1")
	assert.Error(t, err)
}

func TestMining_RerunDoesNotDoubleCount(t *testing.T) {
	ts := NewTestSetup(t)
	ts.IG.FetchCommentsFn = func(context.Context, instagram.Session, string, int) ([]instagram.Comment, error) {
		return []instagram.Comment{comment("c1", "u1", "ali", "fiyat?", ts.Now)}, nil
	}
	req := MiningRequest{WorkspaceID: testWorkspace, Posts: []PostRef{{ID: "p1"}}, Keywords: []string{"fiyat"}}

	first, err := ts.Mining.Run(ts.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, first.LeadsCreated)

	second, err := ts.Mining.Run(ts.ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 0, second.LeadsCreated)
	assert.Equal(t, 1, second.LeadsSaved)

	lead, err := ts.LeadRepo.GetByIgUserID(ts.ctx, testWorkspace, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, lead.CommentCount)
}

func TestMining_RejectsInvalidRequests(t *testing.T) {
	ts := NewTestSetup(t)

	tests := []struct {
		name string
		req  MiningRequest
	}{
		{name: "missing workspace", req: MiningRequest{Posts: []PostRef{{ID: "p1"}}, Keywords: []string{"fiyat"}}},
		{name: "no posts", req: MiningRequest{WorkspaceID: testWorkspace, Keywords: []string{"fiyat"}}},
		{name: "empty post id", req: MiningRequest{WorkspaceID: testWorkspace, Posts: []PostRef{{}}, Keywords: []string{"fiyat"}}},
		{name: "blank keywords", req: MiningRequest{WorkspaceID: testWorkspace, Posts: []PostRef{{ID: "p1"}}, Keywords: []string{" ", ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Mining.Run(ts.ctx, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestDateRangeContains(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)
	var open *DateRange
	assert.True(t, open.Contains(now))

	r := &DateRange{From: now.Add(-time.Hour), To: now}
	assert.True(t, r.Contains(now))
	assert.True(t, r.Contains(now.Add(-time.Hour)))
	assert.False(t, r.Contains(now.Add(time.Second)))
	assert.False(t, r.Contains(now.Add(-2*time.Hour)))
}

func TestMining_RunForAccountUsesAccountSession(t *testing.T) {
	ts := NewTestSetup(t)
	ts.createAccount(t, "first", 40)
	second := ts.createAccount(t, "second", 40)

	var used []string
	ts.IG.FetchCommentsFn = func(_ context.Context, s instagram.Session, _ string, _ int) ([]instagram.Comment, error) {
		used = append(used, s.Username)
		return nil, nil
	}
	req := MiningRequest{WorkspaceID: testWorkspace, Posts: []PostRef{{ID: "p1"}}, Keywords: []string{"fiyat"}}

	_, err := ts.Mining.RunForAccount(ts.ctx, second.ID, req)
	require.NoError(t, err)
	_, err = ts.Mining.RunForAccount(ts.ctx, 0, req)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, used)

	_, err = ts.Mining.RunForAccount(ts.ctx, 999, req)
	assert.ErrorIs(t, err, ErrNotFound)

	req.WorkspaceID = "ws-other"
	_, err = ts.Mining.RunForAccount(ts.ctx, second.ID, req)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = ts.Mining.RunForAccount(ts.ctx, 0, req)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
