package services

import (
	"context"
	"fmt"

	"github.com/socialora/outreach/internal/db/models"
	"github.com/socialora/outreach/internal/db/repos"
	"github.com/socialora/outreach/internal/instagram"
)

// accountSession resolves the account a workspace acts as. A zero accountID
// picks the first active account of the workspace.
func accountSession(ctx context.Context, accounts *repos.AccountRepository, workspaceID string, accountID uint) (instagram.Session, *models.InstagramAccount, error) {
	if accounts == nil {
		return instagram.Session{}, nil, fmt.Errorf("%w: no instagram account store", ErrNotConfigured)
	}
	if accountID != 0 {
		account, err := accounts.GetByID(ctx, accountID)
		if err != nil {
			return instagram.Session{}, nil, lookupError(err)
		}
		if account.WorkspaceID != workspaceID {
			return instagram.Session{}, nil, invalidInput(fmt.Errorf("instagram account %d belongs to another workspace", account.ID))
		}
		return sessionOf(account), account, nil
	}
	active, err := accounts.ListActive(ctx, workspaceID)
	if err != nil {
		return instagram.Session{}, nil, err
	}
	if len(active) == 0 {
		return instagram.Session{}, nil, fmt.Errorf("%w: workspace %s has no active instagram account", ErrNotConfigured, workspaceID)
	}
	return sessionOf(&active[0]), &active[0], nil
}
