package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SubmoltRule struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Submolt is a themed sub-community grouping questions and prompts.
type Submolt struct {
	ID            uuid.UUID                        `gorm:"type:uuid;primaryKey" json:"id"`
	Name          string                           `gorm:"not null" json:"name"`
	Slug          string                           `gorm:"uniqueIndex;not null" json:"slug"`
	Description   string                           `json:"description"`
	IconURL       string                           `json:"icon_url"`
	BannerURL     string                           `json:"banner_url"`
	OwnerID       uuid.UUID                        `gorm:"type:uuid;not null" json:"owner_id"`
	OwnerType     string                           `gorm:"not null" json:"owner_type"`
	MemberCount   int                              `gorm:"default:0" json:"member_count"`
	QuestionCount int                              `gorm:"default:0" json:"question_count"`
	Visibility    string                           `gorm:"default:public" json:"visibility"`
	Rules         datatypes.JSONSlice[SubmoltRule] `json:"rules"`
	CreatedAt     time.Time                        `json:"created_at"`
	UpdatedAt     time.Time                        `json:"updated_at"`
}

func (s *Submolt) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Membership roles.
const (
	RoleMember    = "member"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

type SubmoltMember struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmoltID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submolt_member" json:"submolt_id"`
	MemberID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_submolt_member" json:"member_id"`
	MemberType string    `gorm:"not null;uniqueIndex:idx_submolt_member" json:"member_type"`
	Role       string    `gorm:"default:member" json:"role"`
	JoinedAt   time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

func (m *SubmoltMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type CreateSubmoltRequest struct {
	Name        string        `json:"name"`
	Slug        string        `json:"slug"`
	Description string        `json:"description"`
	IconURL     string        `json:"icon_url"`
	BannerURL   string        `json:"banner_url"`
	Visibility  string        `json:"visibility"`
	Rules       []SubmoltRule `json:"rules"`
}

type UpdateSubmoltRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	IconURL     *string        `json:"icon_url"`
	BannerURL   *string        `json:"banner_url"`
	Visibility  *string        `json:"visibility"`
	Rules       *[]SubmoltRule `json:"rules"`
}
