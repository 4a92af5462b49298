package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                 uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Username           string     `gorm:"uniqueIndex;not null"     json:"username"`
	PasswordHash       string     `gorm:"not null"                 json:"-"`
	Email              string     `gorm:"uniqueIndex;not null"     json:"email"`
	Role               string     `gorm:"not null"                 json:"role"`
	ProfilePictureURL  string     `json:"profile_picture_url"`
	CreatedAt          time.Time  `json:"created_at"`
	RefreshToken       *string    `gorm:"size:500"                 json:"-"`
	RefreshTokenExpiry *time.Time `json:"-"`
}

type Chat struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	Title     string    `gorm:"not null"                 json:"title"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ChatMessage struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ChatID       uint      `gorm:"index;not null"           json:"chat_id"`
	Role         string    `gorm:"not null;size:10"         json:"role"`
	Content      string    `gorm:"not null;type:text"       json:"content"`
	TemplateUsed string    `gorm:"size:50"                  json:"template_used"`
	CreatedAt    time.Time `json:"created_at"`
}
