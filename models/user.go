package models

import "time"

type User struct {
	ID        int       `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password,omitempty"`
	Bio       string    `json:"bio"`
	Website   string    `json:"website"`
	AvatarURL string    `json:"avatar_url"`
	CreatedAt time.Time `json:"created_at"`
}

// UserWithCounts is the profile read model. Follower and following counts
// come from the follows table, not from user columns.
type UserWithCounts struct {
	User
	FollowersCount int `json:"followers_count"`
	FollowingCount int `json:"following_count"`
}
