package models

import (
	"time"
)

// Post is a single contest entry. Each author has at most one post per contest day,
// and each day has at most one post flagged as winner.
type Post struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	ImageURL    string    `gorm:"not null" json:"image_url"`
	Date        time.Time `gorm:"not null;uniqueIndex:idx_posts_author_date,priority:2;uniqueIndex:idx_posts_winner_date,where:is_winner = true;index" json:"date"`
	IsWinner    bool      `gorm:"not null;default:false" json:"is_winner"`
	AuthorID    uint      `gorm:"not null;uniqueIndex:idx_posts_author_date,priority:1" json:"author_id"`
	Author      *User     `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	// VoteCount is computed at query time
	VoteCount int64     `gorm:"->;-:migration" json:"vote_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vote records one user's vote for one post.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_votes_user_post,priority:1" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_votes_user_post,priority:2;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// VoteState describes the outcome of a vote toggle.
type VoteState string

const (
	VoteAdded   VoteState = "added"
	VoteRemoved VoteState = "removed"
)
