package models

import (
	"time"

	"gorm.io/gorm"
)

// DefaultDailyDMLimit is applied to accounts created without an explicit limit
const DefaultDailyDMLimit = 40

// InstagramAccount is a sender account whose captured session is used for authenticated calls
type InstagramAccount struct {
	gorm.Model
	WorkspaceID string `json:"workspace_id" gorm:"not null;index"`
	Username    string `json:"username" gorm:"not null;index"`
	IgUserID    string `json:"ig_user_id"`
	// SessionCookie is the opaque cookie captured by the browser extension
	SessionCookie string `json:"-" gorm:"type:text"`
	IsActive      bool   `json:"is_active" gorm:"not null;default:true"`
	DailyLimit    int    `json:"daily_limit" gorm:"not null;default:40"`
	DmsSentToday  int    `json:"dms_sent_today" gorm:"not null;default:0"`
	// CounterDate is the UTC day (YYYY-MM-DD) DmsSentToday belongs to
	CounterDate string     `json:"counter_date" gorm:"not null;default:''"`
	LastDMAt    *time.Time `json:"last_dm_at,omitempty"`
}

// BeforeCreate is a GORM hook that runs before creating a new account
func (a *InstagramAccount) BeforeCreate(_ *gorm.DB) error {
	if a.DailyLimit == 0 {
		a.DailyLimit = DefaultDailyDMLimit
	}
	return ValidateWorkspaceID(a.WorkspaceID)
}
