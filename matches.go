package main

import (
	"database/sql"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Match lifecycle per unordered pair: NoMatch -> Matched -> NoMatch.
// A mutual like creates the match; either side unliking tears it down
// together with its messages. Notifications go out only after the
// transaction commits, so clients are never told about state that
// failed to persist.

// A dispatcher router for all /matches/{...} requests:
//
//	POST   /matches/like/{profileId}  -> like
//	DELETE /matches/like/{profileId}  -> unlike
//	GET    /matches/{matchId}/messages
//	POST   /matches/{matchId}/messages
func matchesActionsRouter(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matches" {
			http.NotFound(w, r)
			return
		}

		if parts[1] == "like" {
			switch r.Method {
			case http.MethodPost:
				likeHandler(db).ServeHTTP(w, r)
			case http.MethodDelete:
				unlikeHandler(db).ServeHTTP(w, r)
			default:
				writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			}
			return
		}

		if parts[2] == "messages" {
			switch r.Method {
			case http.MethodGet:
				getMessagesHandler(db).ServeHTTP(w, r)
			case http.MethodPost:
				sendMessageHandler(db).ServeHTTP(w, r)
			default:
				writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			}
			return
		}

		http.NotFound(w, r)
	}
}

// resolveLikeTarget parses /matches/like/{profileId} and resolves both
// ends of the edge: the likee from the path's profile id, the liker
// from the caller's own profile. Both must exist before any mutation.
func resolveLikeTarget(db *sql.DB, w http.ResponseWriter, r *http.Request, likerUserID int) (likee *Profile, liker *Profile, ok bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "matches" || parts[1] != "like" {
		http.NotFound(w, r)
		return nil, nil, false
	}

	likee, err := loadProfileByID(db, parts[2])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, nil, false
	}
	if likee == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, nil, false
	}

	liker, err = loadProfileByUser(db, likerUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, nil, false
	}
	if liker == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, nil, false
	}

	if likee.UserID == likerUserID {
		writeError(w, http.StatusBadRequest, "invalid_target")
		return nil, nil, false
	}
	return likee, liker, true
}

// POST /matches/like/{profileId}
// Inserts the directed edge and, when it completes a mutual like,
// creates the match in the same transaction. Exactly one event goes
// out: NewMatch to both sides, or NewLike to the likee.
func likeHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(userIDKey).(int)

		likee, liker, ok := resolveLikeTarget(db, w, r, me)
		if !ok {
			return
		}
		likeeUserID := likee.UserID

		var resp LikeResponse
		var inserted, matchCreated bool
		var matchID string

		err := withTx(r.Context(), db, func(tx *sql.Tx) error {
			var err error
			inserted, err = insertLikeTx(tx, me, likeeUserID)
			if err != nil {
				return err
			}

			// The ledger, not the matches table, decides mutuality.
			// This runs on the duplicate-edge path too: two concurrent
			// likes can each commit their edge without seeing the
			// other, leaving a mutual pair with no match row. The next
			// like from either side lands here and backfills it.
			mutual, err := isMutualTx(tx, me, likeeUserID)
			if err != nil {
				return err
			}
			if !mutual {
				return nil
			}

			matchID, matchCreated, err = ensureMatchTx(tx, me, likeeUserID)
			if err != nil {
				return err
			}
			resp.Matched = true
			resp.MatchID = &matchID
			return nil
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("likeHandler tx error:", err)
			return
		}

		// Push only after commit. A match backfilled on the duplicate
		// path is still news to both sides.
		if matchCreated {
			matchHub.notify(me, EventNewMatch, matchID)
			matchHub.notify(likeeUserID, EventNewMatch, matchID)
		} else if inserted && !resp.Matched {
			matchHub.notify(likeeUserID, EventNewLike, LikerSummary{
				ProfileID:       liker.ID,
				DisplayName:     liker.DisplayName,
				AnimalAvatarURL: liker.AnimalAvatarURL,
			})
		}

		if !inserted {
			writeError(w, http.StatusConflict, "already_liked")
			return
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

// ensureMatchTx creates the match row for the pair, or reuses the
// existing one. The unique index over the unordered pair makes the
// insert race-safe; created reports whether this call added the row.
func ensureMatchTx(tx *sql.Tx, a, b int) (matchID string, created bool, err error) {
	matchID = uuid.NewString()
	err = tx.QueryRow(`
		INSERT INTO matches (id, user1_id, user2_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (LEAST(user1_id, user2_id), GREATEST(user1_id, user2_id)) DO NOTHING
		RETURNING id
	`, matchID, a, b, MatchStatusMatched).Scan(&matchID)
	if err == sql.ErrNoRows {
		err = tx.QueryRow(`
			SELECT id FROM matches
			WHERE (user1_id = $1 AND user2_id = $2)
			   OR (user1_id = $2 AND user2_id = $1)
		`, a, b).Scan(&matchID)
		return matchID, false, err
	}
	if err != nil {
		return "", false, err
	}
	return matchID, true, nil
}

// DELETE /matches/like/{profileId}
// Removes the caller's edge and tears down the match (messages first,
// then the match row) in one transaction. The counterparty's edge
// survives, so re-matching needs a fresh like from the caller.
func unlikeHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(userIDKey).(int)

		// Deleting an edge needs only the target's identity; the
		// caller's own profile is irrelevant here.
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matches" || parts[1] != "like" {
			http.NotFound(w, r)
			return
		}
		likeeUserID, found, err := profileOwner(db, parts[2])
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if !found {
			writeError(w, http.StatusNotFound, "not_found")
			return
		}

		err = withTx(r.Context(), db, func(tx *sql.Tx) error {
			if err := deleteLikeTx(tx, me, likeeUserID); err != nil {
				return err
			}

			match, err := findMatchForUpdate(tx, me, likeeUserID)
			if err != nil {
				return err
			}
			if match == nil {
				return nil
			}

			// Messages die with the match, both-or-neither
			if _, err := tx.Exec(`DELETE FROM messages WHERE match_id = $1`, match.ID); err != nil {
				return err
			}
			_, err = tx.Exec(`DELETE FROM matches WHERE id = $1`, match.ID)
			return err
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("unlikeHandler tx error:", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	})
}

// GET /matches: the caller's matched matches, each carrying the
// counterparty's profile. Counterparty profiles come from the batched
// loader: one IN-query no matter how many matches.
func matchesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		me := r.Context().Value(userIDKey).(int)

		rows, err := db.Query(`
			SELECT id, user1_id, user2_id, status, created_at
			FROM matches
			WHERE status = $2 AND (user1_id = $1 OR user2_id = $1)
			ORDER BY created_at DESC, id
		`, me, MatchStatusMatched)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		var matches []Match
		for rows.Next() {
			var m Match
			if err := rows.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.Status, &m.CreatedAt); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			matches = append(matches, m)
		}
		if err := rows.Err(); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		otherIDs := make([]int, len(matches))
		for i, m := range matches {
			otherIDs[i] = m.OtherUser(me)
		}

		loader := newProfileLoader(db)
		profiles := loader.LoadMany(r.Context(), otherIDs)

		result := make([]MatchDto, 0, len(matches))
		for i, m := range matches {
			if profiles[i] != nil {
				profiles[i].LikeStatus = LikeStatusMatched
			}
			result = append(result, MatchDto{Match: m, OtherProfile: profiles[i]})
		}
		writeJSON(w, http.StatusOK, result)
	})
}
