package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionCreatePost     = "create_post"
	ActionUpdatePost     = "update_post"
	ActionDeletePost     = "delete_post"
	ActionLikePost       = "like_post"
	ActionLikeComment    = "like_comment"
	ActionCommentPost    = "comment_post"
	ActionRegister       = "register"
	ActionLogin          = "login"
	ActionUpdateProfile  = "update_profile"
	ActionUpdateAvatar   = "update_avatar"
	ActionChangePassword = "change_password"
	ActionCreateProfile  = "create_profile"
)

// Activity is an append-only audit record. Normal flows never update or
// delete rows here.
type Activity struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User        *User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Action      string     `gorm:"size:50;not null" json:"action"`
	TargetID    *uuid.UUID `gorm:"type:uuid" json:"target_id,omitempty"`
	Description string     `gorm:"type:text" json:"description"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}
