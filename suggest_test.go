package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ============================================================================
// RECOMMENDATION TEST SUITE
// ============================================================================

// suggestAs issues POST /profiles/suggest as the given user.
func suggestAs(t *testing.T, user TestUser, q SuggestQuery) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(q)
	req := httptest.NewRequest(http.MethodPost, "/profiles/suggest", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+user.Token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	suggestHandler(db).ServeHTTP(w, req)
	return w
}

func decodeSuggestions(t *testing.T, w *httptest.ResponseRecorder) []ProfileDto {
	t.Helper()

	if w.Code != http.StatusOK {
		t.Fatalf("suggest failed: status %d body %s", w.Code, w.Body.String())
	}
	var results []ProfileDto
	if err := json.NewDecoder(w.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode suggestions: %v", err)
	}
	return results
}

func TestSuggestions(t *testing.T) {
	// A faith value unique to this suite doubles as a pool isolator:
	// filtering on it keeps profiles from other suites out of the
	// results.
	const suiteFaith = "suggest-suite-faith"

	requester := createTestUser(t, "sug_requester@example.com", "passwordR")
	userX := createTestUser(t, "sug_x@example.com", "passwordX")
	userY := createTestUser(t, "sug_y@example.com", "passwordY")
	userZ := createTestUser(t, "sug_z@example.com", "passwordZ")
	userOther := createTestUser(t, "sug_other@example.com", "passwordO")
	defer cleanupTestData(requester.Email, userX.Email, userY.Email, userZ.Email, userOther.Email)

	// Requester: hobbies [hiking], music [jazz, blues], same faith,
	// leaning "moderate", looking for everyone.
	mine := getDefaultTestProfile()
	mine.DisplayName = "Sug Requester"
	mine.Hobbies = []string{"hiking"}
	mine.MusicGenres = []string{"jazz", "blues"}
	mine.Faith = suiteFaith
	mine.PoliticalLeaning = "moderate"
	createTestProfile(t, requester, mine)

	// X: one shared hobby plus equal faith.
	profX := getDefaultTestProfile()
	profX.DisplayName = "Sug X"
	profX.Hobbies = []string{"hiking", "pottery"}
	profX.MusicGenres = []string{"metal"}
	profX.Faith = suiteFaith
	profileXID := createTestProfile(t, userX, profX)

	// Y: two shared music genres plus equal faith.
	profY := getDefaultTestProfile()
	profY.DisplayName = "Sug Y"
	profY.Hobbies = []string{"chess"}
	profY.MusicGenres = []string{"jazz", "blues", "ska"}
	profY.Faith = suiteFaith
	profileYID := createTestProfile(t, userY, profY)

	// Z: equal faith only, lowest score, still in the pool.
	profZ := getDefaultTestProfile()
	profZ.DisplayName = "Sug Z"
	profZ.Hobbies = []string{"golf"}
	profZ.MusicGenres = []string{"country"}
	profZ.Faith = suiteFaith
	profileZID := createTestProfile(t, userZ, profZ)

	// Other: different faith, excluded by the hard filter.
	profOther := getDefaultTestProfile()
	profOther.DisplayName = "Sug Other"
	profOther.Faith = "some-other-faith"
	createTestProfile(t, userOther, profOther)

	baseQuery := SuggestQuery{Faith: suiteFaith}

	t.Run("Never includes the requester", func(t *testing.T) {
		results := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		for _, p := range results {
			if p.UserID == requester.ID {
				t.Fatal("requester appeared in their own suggestions")
			}
		}
	})

	t.Run("Faith hard filter excludes non-matching profiles", func(t *testing.T) {
		results := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		for _, p := range results {
			if p.DisplayName == "Sug Other" {
				t.Fatal("hard-filtered profile leaked into results")
			}
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 candidates, got %d", len(results))
		}
	})

	t.Run("Ranked by weighted overlap", func(t *testing.T) {
		results := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		if len(results) != 3 {
			t.Fatalf("expected 3 candidates, got %d", len(results))
		}
		// Y: two shared music genres + faith = 2*2 + 4 = 8
		// X: one shared hobby + faith      = 3 + 4   = 7
		// Z: faith only                    = 4
		want := []string{profileYID, profileXID, profileZID}
		for i, id := range want {
			if results[i].ID != id {
				t.Errorf("position %d: expected profile %s, got %s", i, id, results[i].ID)
			}
		}
	})

	t.Run("Ordering is stable across calls", func(t *testing.T) {
		first := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		second := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		if len(first) != len(second) {
			t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("position %d changed between calls: %s vs %s",
					i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("Pagination slices the ranked list", func(t *testing.T) {
		full := decodeSuggestions(t, suggestAs(t, requester, baseQuery))

		q := baseQuery
		q.PageSize = 2

		q.Page = 0
		page0 := decodeSuggestions(t, suggestAs(t, requester, q))
		q.Page = 1
		page1 := decodeSuggestions(t, suggestAs(t, requester, q))
		q.Page = 5
		pageFar := decodeSuggestions(t, suggestAs(t, requester, q))

		if len(page0) != 2 || len(page1) != 1 {
			t.Fatalf("expected pages of 2 and 1, got %d and %d", len(page0), len(page1))
		}
		if len(pageFar) != 0 {
			t.Errorf("expected an empty page past the end, got %d", len(pageFar))
		}
		recombined := append(append([]ProfileDto{}, page0...), page1...)
		for i := range full {
			if recombined[i].ID != full[i].ID {
				t.Errorf("page boundary broke ordering at %d", i)
			}
		}
	})

	t.Run("Like status annotations", func(t *testing.T) {
		likeProfile(t, requester, profileXID)
		likeProfile(t, requester, profileYID)
		likeProfile(t, userY, mustProfileID(t, requester))
		defer func() {
			unlikeProfile(t, requester, profileXID)
			unlikeProfile(t, requester, profileYID)
			unlikeProfile(t, userY, mustProfileID(t, requester))
		}()

		results := decodeSuggestions(t, suggestAs(t, requester, baseQuery))
		byID := map[string]LikeStatus{}
		for _, p := range results {
			byID[p.ID] = p.LikeStatus
		}
		if byID[profileXID] != LikeStatusLiked {
			t.Errorf("expected X liked, got %q", byID[profileXID])
		}
		if byID[profileYID] != LikeStatusMatched {
			t.Errorf("expected Y matched, got %q", byID[profileYID])
		}
		if byID[profileZID] != LikeStatusNone {
			t.Errorf("expected Z none, got %q", byID[profileZID])
		}
	})

	t.Run("Gender filter", func(t *testing.T) {
		// All suite profiles are Woman; asking for Man empties the pool.
		q := baseQuery
		q.LookingFor = "Man"
		results := decodeSuggestions(t, suggestAs(t, requester, q))
		if len(results) != 0 {
			t.Errorf("expected no candidates for gender filter, got %d", len(results))
		}

		q.LookingFor = "woman"
		results = decodeSuggestions(t, suggestAs(t, requester, q))
		if len(results) != 3 {
			t.Errorf("expected case-insensitive gender match, got %d", len(results))
		}
	})

	t.Run("Requester without a profile", func(t *testing.T) {
		bare := createTestUser(t, "sug_bare@example.com", "passwordB")
		defer cleanupTestData(bare.Email)

		w := suggestAs(t, bare, baseQuery)
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

// mustProfileID looks up the user's profile id directly.
func mustProfileID(t *testing.T, user TestUser) string {
	t.Helper()

	var id string
	if err := db.QueryRow(`SELECT id FROM profiles WHERE user_id = $1`, user.ID).Scan(&id); err != nil {
		t.Fatalf("no profile for user %d: %v", user.ID, err)
	}
	return id
}
