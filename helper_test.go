package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
)

// Initialize JWT secret for tests
func init() {
	jwtSecret = []byte("test-secret-key-for-testing")
}

// createTestUser registers a user through the real handler and returns
// its id and token.
func createTestUser(t *testing.T, email, password string) TestUser {
	t.Helper()

	// Clean up leftovers from earlier runs
	cleanupTestData(email)

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(body))
	w := httptest.NewRecorder()

	registerHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("register failed for %s: status %d body %s", email, w.Code, w.Body.String())
	}

	var resp struct {
		Token string `json:"token"`
		ID    int    `json:"id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}

	return TestUser{ID: resp.ID, Email: email, Password: password, Token: resp.Token}
}

func getDefaultTestProfile() TestProfile {
	return TestProfile{
		DisplayName:     "Test Animal",
		AnimalAvatarURL: "https://cdn.example.com/avatars/capuchin.png",
		AnimalType:      "capuchin",
		Gender:          "Woman",
		LookingFor:      "Everyone",
		MusicGenres:     []string{"synthpop"},
		Hobbies:         []string{"karaoke"},
		Layout: ProfileLayout{
			Theme:       "dark",
			AccentColor: "#ff6699",
			Widgets: []ProfileWidget{
				{ID: "w1", Type: "about", Title: "About me", Content: "hi", Order: 0},
			},
		},
	}
}

// createTestProfile creates a profile through the real handler and
// returns the new profile id.
func createTestProfile(t *testing.T, user TestUser, profile TestProfile) string {
	t.Helper()

	body, _ := json.Marshal(profile)
	req := httptest.NewRequest(http.MethodPost, "/profiles", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	profilesHandler(db).ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("profile creation failed for %s: status %d body %s", user.Email, w.Code, w.Body.String())
	}

	var dto ProfileDto
	if err := json.NewDecoder(w.Body).Decode(&dto); err != nil {
		t.Fatalf("failed to decode profile response: %v", err)
	}
	return dto.ID
}

// likeProfile issues POST /matches/like/{profileID} as the given user.
func likeProfile(t *testing.T, user TestUser, profileID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/matches/like/"+profileID, nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	matchesActionsRouter(db).ServeHTTP(w, req)
	return w
}

// unlikeProfile issues DELETE /matches/like/{profileID} as the given user.
func unlikeProfile(t *testing.T, user TestUser, profileID string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodDelete, "/matches/like/"+profileID, nil)
	req.Header.Set("Authorization", "Bearer "+user.Token)
	w := httptest.NewRecorder()

	matchesActionsRouter(db).ServeHTTP(w, req)
	return w
}

// cleanupTestData removes all rows owned by the given user emails, in
// dependency order.
func cleanupTestData(emails ...string) {
	if len(emails) == 0 {
		return
	}
	db.Exec(`DELETE FROM messages WHERE match_id IN (
		SELECT m.id FROM matches m
		JOIN users u ON u.id IN (m.user1_id, m.user2_id)
		WHERE u.email = ANY($1))`, pq.Array(emails))
	db.Exec(`DELETE FROM matches WHERE user1_id IN (SELECT id FROM users WHERE email = ANY($1))
		OR user2_id IN (SELECT id FROM users WHERE email = ANY($1))`, pq.Array(emails))
	db.Exec(`DELETE FROM likes WHERE liker_id IN (SELECT id FROM users WHERE email = ANY($1))
		OR likee_id IN (SELECT id FROM users WHERE email = ANY($1))`, pq.Array(emails))
	db.Exec(`DELETE FROM profile_tags WHERE profile_id IN (
		SELECT p.id FROM profiles p JOIN users u ON u.id = p.user_id WHERE u.email = ANY($1))`, pq.Array(emails))
	db.Exec(`DELETE FROM profiles WHERE user_id IN (SELECT id FROM users WHERE email = ANY($1))`, pq.Array(emails))
	db.Exec(`DELETE FROM users WHERE email = ANY($1)`, pq.Array(emails))
}

// attachTestClient registers an in-memory client on the global hub and
// returns its event channel plus a detach func. Lets tests observe
// notifications without a real socket.
func attachTestClient(userID int) (chan ServerEvent, func()) {
	c := &Client{userID: userID, send: make(chan ServerEvent, 16)}
	matchHub.register(c)
	return c.send, func() { matchHub.unregister(c) }
}
