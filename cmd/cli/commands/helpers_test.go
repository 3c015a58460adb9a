package commands

import (
	"context"
	"time"

	"github.com/socialora/outreach/internal/instagram"
)

func commentsFrom(pk, username, text string) func(context.Context, instagram.Session, string, int) ([]instagram.Comment, error) {
	return func(_ context.Context, _ instagram.Session, postID string, _ int) ([]instagram.Comment, error) {
		return []instagram.Comment{{
			ID:        "c-" + postID,
			Text:      text,
			CreatedAt: time.Now().Unix(),
			User:      instagram.User{PK: pk, Username: username},
		}}, nil
	}
}

func profileOf(fullName, bio string) func(context.Context, instagram.Session, string) (*instagram.Profile, error) {
	return func(_ context.Context, _ instagram.Session, username string) (*instagram.Profile, error) {
		return &instagram.Profile{PK: "u1", Username: username, FullName: fullName, Biography: bio, FollowerCount: 900, MediaCount: 30}, nil
	}
}
