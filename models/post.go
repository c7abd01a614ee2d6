package models

import "time"

type Post struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Likes     []int      `json:"likes"`
}

// PostWithCounts carries the author and engagement counters for feed-style
// listings, where the full like and comment payloads are not needed.
type PostWithCounts struct {
	ID           int        `json:"id"`
	UserID       int        `json:"user_id"`
	Content      string     `json:"content"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Username     string     `json:"username"`
	Name         string     `json:"name"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
}
