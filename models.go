package main

import (
	"encoding/json"
	"time"
)

// LikeStatus is the viewer-relative relationship to a profile.
// Derived from the likes and matches tables at read time, never stored.
type LikeStatus string

const (
	LikeStatusNone    LikeStatus = "none"
	LikeStatusLiked   LikeStatus = "liked"
	LikeStatusMatched LikeStatus = "matched"
)

// Match status values. Only "matched" is produced by current flows;
// the column reserves the other two.
const (
	MatchStatusPending  = "pending"
	MatchStatusMatched  = "matched"
	MatchStatusRejected = "rejected"
)

// Tag categories for profile tags.
const (
	TagMusic = "music"
	TagHobby = "hobby"
)

// ProfileWidget is one display block on a profile page. The type tag
// drives rendering on the client: about | music | hobbies | top8 | blog.
type ProfileWidget struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// ProfileLayout is the theming document owned by the profile editor.
// The matching core persists it as jsonb and returns it unchanged.
type ProfileLayout struct {
	Theme       string          `json:"theme"`
	AccentColor string          `json:"accent_color"`
	Widgets     []ProfileWidget `json:"widgets"`
}

// Profile holds everything the matching core reads about a user.
type Profile struct {
	ID               string
	UserID           int
	DisplayName      string
	AnimalAvatarURL  string
	AnimalType       string
	Gender           string
	LookingFor       string
	Faith            string // empty = not set
	PoliticalLeaning string // empty = not set
	MusicGenres      []string
	Hobbies          []string
	Layout           json.RawMessage
	CreatedAt        time.Time
}

// ProfileDto is the wire projection of a Profile.
type ProfileDto struct {
	ID               string          `json:"id"`
	UserID           int             `json:"user_id"`
	DisplayName      string          `json:"display_name"`
	AnimalAvatarURL  string          `json:"animal_avatar_url"`
	AnimalType       string          `json:"animal_type"`
	Gender           string          `json:"gender"`
	LookingFor       string          `json:"looking_for"`
	MusicGenres      []string        `json:"music_genres"`
	Hobbies          []string        `json:"hobbies"`
	Faith            *string         `json:"faith,omitempty"`
	PoliticalLeaning *string         `json:"political_leaning,omitempty"`
	Layout           json.RawMessage `json:"layout"`
	CreatedAt        time.Time       `json:"created_at"`
	LikeStatus       LikeStatus      `json:"like_status"`
}

// LikerSummary is the public projection pushed with a NewLike event.
// Deliberately not the full profile.
type LikerSummary struct {
	ProfileID       string `json:"profileId"`
	DisplayName     string `json:"displayName"`
	AnimalAvatarURL string `json:"animalAvatarUrl"`
}

// Match is the durable record of a mutual like. User1/User2 order is
// the insertion order of the consummating like and carries no meaning.
type Match struct {
	ID        string    `json:"id"`
	User1ID   int       `json:"user1_id"`
	User2ID   int       `json:"user2_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchDto is a Match enriched with the counterparty's profile.
type MatchDto struct {
	Match
	OtherProfile *ProfileDto `json:"other_profile"`
}

// Message belongs to exactly one match and dies with it.
type Message struct {
	ID       string    `json:"id"`
	MatchID  string    `json:"matchId"`
	SenderID int       `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
}

// LikeResponse is the result of POST /matches/like/{profileId}.
type LikeResponse struct {
	Matched bool    `json:"matched"`
	MatchID *string `json:"match_id,omitempty"`
}

// OtherUser returns the counterparty of userID in m. Callers must have
// verified membership first.
func (m *Match) OtherUser(userID int) int {
	if m.User1ID == userID {
		return m.User2ID
	}
	return m.User1ID
}

// HasParticipant reports whether userID is one of the two sides,
// regardless of insertion order.
func (m *Match) HasParticipant(userID int) bool {
	return m.User1ID == userID || m.User2ID == userID
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toProfileDto(p *Profile, status LikeStatus) *ProfileDto {
	layout := p.Layout
	if len(layout) == 0 {
		layout = json.RawMessage(`{}`)
	}
	music := p.MusicGenres
	if music == nil {
		music = []string{}
	}
	hobbies := p.Hobbies
	if hobbies == nil {
		hobbies = []string{}
	}
	return &ProfileDto{
		ID:               p.ID,
		UserID:           p.UserID,
		DisplayName:      p.DisplayName,
		AnimalAvatarURL:  p.AnimalAvatarURL,
		AnimalType:       p.AnimalType,
		Gender:           p.Gender,
		LookingFor:       p.LookingFor,
		MusicGenres:      music,
		Hobbies:          hobbies,
		Faith:            optional(p.Faith),
		PoliticalLeaning: optional(p.PoliticalLeaning),
		Layout:           layout,
		CreatedAt:        p.CreatedAt,
		LikeStatus:       status,
	}
}

// likeStatusFor derives the annotation from the viewer's bulk-fetched
// sets. Matched wins if somehow both contain the id.
func likeStatusFor(candidateUserID int, liked, matched map[int]struct{}) LikeStatus {
	if _, ok := matched[candidateUserID]; ok {
		return LikeStatusMatched
	}
	if _, ok := liked[candidateUserID]; ok {
		return LikeStatusLiked
	}
	return LikeStatusNone
}
