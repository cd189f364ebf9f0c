package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ProfileRequest is the create/update body. The layout document is
// decoded only to validate its shape; the core stores it unchanged.
type ProfileRequest struct {
	DisplayName      string        `json:"display_name"`
	AnimalAvatarURL  string        `json:"animal_avatar_url"`
	AnimalType       string        `json:"animal_type"`
	Gender           string        `json:"gender"`
	LookingFor       string        `json:"looking_for"`
	Faith            string        `json:"faith"`
	PoliticalLeaning string        `json:"political_leaning"`
	MusicGenres      []string      `json:"music_genres"`
	Hobbies          []string      `json:"hobbies"`
	Layout           ProfileLayout `json:"layout"`
}

const profileColumns = `id, user_id, display_name, animal_avatar_url, animal_type,
	gender, looking_for, COALESCE(faith, ''), COALESCE(political_leaning, ''), layout, created_at`

func scanProfile(row *sql.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.AnimalAvatarURL, &p.AnimalType,
		&p.Gender, &p.LookingFor, &p.Faith, &p.PoliticalLeaning, &p.Layout, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func loadProfileByID(db *sql.DB, id string) (*Profile, error) {
	p, err := scanProfile(db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id))
	if err != nil || p == nil {
		return p, err
	}
	return p, attachTags(db, p)
}

// profileOwner resolves just the owning user id of a profile, for
// paths that need the target identity and nothing else. found is false
// when the profile id is unknown.
func profileOwner(db *sql.DB, profileID string) (userID int, found bool, err error) {
	err = db.QueryRow(`SELECT user_id FROM profiles WHERE id = $1`, profileID).Scan(&userID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return userID, true, nil
}

func loadProfileByUser(db *sql.DB, userID int) (*Profile, error) {
	p, err := scanProfile(db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil || p == nil {
		return p, err
	}
	return p, attachTags(db, p)
}

func attachTags(db *sql.DB, p *Profile) error {
	rows, err := db.Query(`SELECT category, value FROM profile_tags WHERE profile_id = $1 ORDER BY id`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var category, value string
		if err := rows.Scan(&category, &value); err != nil {
			return err
		}
		switch category {
		case TagMusic:
			p.MusicGenres = append(p.MusicGenres, value)
		case TagHobby:
			p.Hobbies = append(p.Hobbies, value)
		}
	}
	return rows.Err()
}

// tagsForProfiles bulk-loads tags for a whole candidate pool with one
// query, keyed by profile id.
func tagsForProfiles(db *sql.DB, profileIDs []string) (map[string][]string, map[string][]string, error) {
	music := make(map[string][]string)
	hobbies := make(map[string][]string)
	if len(profileIDs) == 0 {
		return music, hobbies, nil
	}

	rows, err := db.Query(`
		SELECT profile_id, category, value
		FROM profile_tags
		WHERE profile_id = ANY($1)
		ORDER BY id
	`, pq.Array(profileIDs))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var profileID, category, value string
		if err := rows.Scan(&profileID, &category, &value); err != nil {
			return nil, nil, err
		}
		switch category {
		case TagMusic:
			music[profileID] = append(music[profileID], value)
		case TagHobby:
			hobbies[profileID] = append(hobbies[profileID], value)
		}
	}
	return music, hobbies, rows.Err()
}

func replaceTagsTx(tx *sql.Tx, profileID string, music, hobbies []string) error {
	if _, err := tx.Exec(`DELETE FROM profile_tags WHERE profile_id = $1`, profileID); err != nil {
		return err
	}
	for _, v := range music {
		if _, err := tx.Exec(`INSERT INTO profile_tags (profile_id, category, value) VALUES ($1, $2, $3)`,
			profileID, TagMusic, v); err != nil {
			return err
		}
	}
	for _, v := range hobbies {
		if _, err := tx.Exec(`INSERT INTO profile_tags (profile_id, category, value) VALUES ($1, $2, $3)`,
			profileID, TagHobby, v); err != nil {
			return err
		}
	}
	return nil
}

// POST /profiles: create the caller's profile (one per user)
func profilesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var req ProfileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		req.DisplayName = strings.TrimSpace(req.DisplayName)
		if req.DisplayName == "" || strings.TrimSpace(req.AnimalAvatarURL) == "" {
			writeError(w, http.StatusBadRequest, "missing_fields")
			return
		}

		layoutJSON, err := json.Marshal(req.Layout)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		profileID := uuid.NewString()
		wroteErr := false
		err = withTx(r.Context(), db, func(tx *sql.Tx) error {
			res, err := tx.Exec(`
				INSERT INTO profiles (id, user_id, display_name, animal_avatar_url, animal_type,
					gender, looking_for, faith, political_leaning, layout)
				VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10)
				ON CONFLICT (user_id) DO NOTHING
			`, profileID, userID, req.DisplayName, req.AnimalAvatarURL, req.AnimalType,
				req.Gender, req.LookingFor, req.Faith, req.PoliticalLeaning, layoutJSON)
			if err != nil {
				return err
			}
			if n, err := res.RowsAffected(); err != nil {
				return err
			} else if n == 0 {
				// Exactly one profile per user
				writeError(w, http.StatusConflict, "profile_exists")
				wroteErr = true
				return nil
			}
			return replaceTagsTx(tx, profileID, req.MusicGenres, req.Hobbies)
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("profilesHandler tx error:", err)
			return
		}
		if wroteErr {
			return
		}

		p, err := loadProfileByID(db, profileID)
		if err != nil || p == nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		writeJSON(w, http.StatusCreated, toProfileDto(p, LikeStatusNone))
	})
}

// Dispatcher for /profiles/*: me, suggest, {id}
func profilesDispatcher(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "profiles" {
			http.NotFound(w, r)
			return
		}
		switch parts[1] {
		case "me":
			myProfileHandler(db).ServeHTTP(w, r)
		case "suggest":
			suggestHandler(db).ServeHTTP(w, r)
		default:
			getProfileHandler(db).ServeHTTP(w, r)
		}
	}
}

// GET|PUT /profiles/me
func myProfileHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)

		switch r.Method {
		case http.MethodGet:
			p, err := loadProfileByUser(db, userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			if p == nil {
				writeError(w, http.StatusNotFound, "not_found")
				return
			}
			writeJSON(w, http.StatusOK, toProfileDto(p, LikeStatusNone))

		case http.MethodPut:
			var req ProfileRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}
			req.DisplayName = strings.TrimSpace(req.DisplayName)
			if req.DisplayName == "" || strings.TrimSpace(req.AnimalAvatarURL) == "" {
				writeError(w, http.StatusBadRequest, "missing_fields")
				return
			}
			layoutJSON, err := json.Marshal(req.Layout)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_json")
				return
			}

			wroteErr := false
			var profileID string
			err = withTx(r.Context(), db, func(tx *sql.Tx) error {
				err := tx.QueryRow(`
					UPDATE profiles SET display_name = $2, animal_avatar_url = $3, animal_type = $4,
						gender = $5, looking_for = $6, faith = NULLIF($7, ''),
						political_leaning = NULLIF($8, ''), layout = $9
					WHERE user_id = $1
					RETURNING id
				`, userID, req.DisplayName, req.AnimalAvatarURL, req.AnimalType,
					req.Gender, req.LookingFor, req.Faith, req.PoliticalLeaning, layoutJSON).Scan(&profileID)
				if err == sql.ErrNoRows {
					writeError(w, http.StatusNotFound, "not_found")
					wroteErr = true
					return nil
				}
				if err != nil {
					return err
				}
				return replaceTagsTx(tx, profileID, req.MusicGenres, req.Hobbies)
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				log.Println("myProfileHandler tx error:", err)
				return
			}
			if wroteErr {
				return
			}

			p, err := loadProfileByID(db, profileID)
			if err != nil || p == nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			writeJSON(w, http.StatusOK, toProfileDto(p, LikeStatusNone))

		default:
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
		}
	})
}

// GET /profiles/{id}
// Anonymous viewers are allowed but always see like_status "none";
// liked/matched sets are only fetched for authenticated callers.
func getProfileHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 2 || parts[0] != "profiles" {
			http.NotFound(w, r)
			return
		}

		p, err := loadProfileByID(db, parts[1])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if p == nil {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		status := LikeStatusNone
		if viewerID, ok := getUserIDFromBearer(r); ok {
			liked, err := likedSet(db, viewerID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			matched, err := matchedSet(db, viewerID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			status = likeStatusFor(p.UserID, liked, matched)
		}

		writeJSON(w, http.StatusOK, toProfileDto(p, status))
	}
}
