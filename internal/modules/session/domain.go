package session

import (
	"errors"
)

// DefaultStorageKey is the key the session blob is persisted under
const DefaultStorageKey = "auth-storage"

var (
	ErrNotFound         = errors.New("session not found")
	ErrEmptyCredentials = errors.New("access and refresh tokens are required")
)

// Credentials is the token pair issued by the API
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether neither token is set
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Complete reports whether both tokens are set
func (c Credentials) Complete() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Profile is the authenticated user's profile as returned by GET /profile
type Profile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	DateFormat  string `json:"dateFormat,omitempty"`
	Country     string `json:"country,omitempty"`
}

// DisplayName returns "First Last", falling back to the username
func (p Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Username
	}
}

// State is the persisted session. The JSON field names are the storage format.
type State struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         *Profile `json:"user"`
	IsAuth       bool     `json:"isAuth"`
}

// Credentials returns the token pair held by the state
func (s State) Credentials() Credentials {
	return Credentials{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken}
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// normalize drops states that claim to be authenticated without an access token
func (s State) normalize() State {
	if s.IsAuth && s.AccessToken == "" {
		return State{}
	}
	return s
}
