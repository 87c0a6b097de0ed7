// Package models defines the JSON request and response shapes of the HTTP API.
package models

import "time"

// Host authentication
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	HostID string `json:"hostId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// Rooms
type RoomResponse struct {
	Code      string    `json:"code"`
	HostEmail string    `json:"hostEmail"`
	CreatedAt time.Time `json:"createdAt"`

	// SuggestedName is a generated attendee nickname offered on join.
	SuggestedName string `json:"suggestedName,omitempty"`
}

// Song requests
type SubmitSongRequest struct {
	ExternalTrackID string `json:"externalTrackId"`
	Title           string `json:"title"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	ExternalURL     string `json:"externalUrl,omitempty"`
	SubmitterName   string `json:"submitterName,omitempty"`
	Mode            string `json:"mode"` // "named" or "guest"
}

type SongResponse struct {
	ID              string    `json:"id"`
	ExternalTrackID string    `json:"externalTrackId"`
	Title           string    `json:"title"`
	ThumbnailURL    string    `json:"thumbnailUrl,omitempty"`
	ExternalURL     string    `json:"externalUrl,omitempty"`
	SubmitterLabel  string    `json:"submitterLabel"`
	Status          string    `json:"status"`
	VoteCount       int64     `json:"voteCount"`
	RequestedAt     time.Time `json:"requestedAt"`
}

type SetStatusRequest struct {
	Status string `json:"status"` // "approved", "rejected", or "played"
}

// Catalog search
type SearchResponse struct {
	Tracks []TrackResponse `json:"tracks"`
}

type TrackResponse struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Artists      []string `json:"artists"`
	ThumbnailURL string   `json:"thumbnailUrl,omitempty"`
	ExternalURL  string   `json:"externalUrl"`
}

// Error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
