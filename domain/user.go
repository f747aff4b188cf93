package domain

import "time"

// User is the stored user record. Password, follower graph and email
// verification flows live outside this backend; only the fields the chat
// and timeline surfaces need are kept here.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ImageURL  string    `json:"imageURL"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the public projection of a User, returned by listings and
// joined onto message views.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	ImageURL string `json:"imageURL"`
}

func (u User) Profile() Profile {
	return Profile{ID: u.ID, Name: u.Name, Username: u.Username, ImageURL: u.ImageURL}
}
