package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Messages live inside a match: both participants can read and write,
// everyone else gets Forbidden. When the match is torn down its
// messages go with it, so an old match id turns into a plain 404.

// loadMatchForMember resolves /matches/{matchId}/messages and checks
// membership. 404 when the match id is unknown, 403 when the caller is
// not one of the two participants.
func loadMatchForMember(db *sql.DB, w http.ResponseWriter, r *http.Request, userID int) (*Match, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 3 || parts[0] != "matches" || parts[2] != "messages" {
		http.NotFound(w, r)
		return nil, false
	}

	match, err := getMatch(db, parts[1])
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return nil, false
	}
	if match == nil {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	if !match.HasParticipant(userID) {
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return match, true
}

// GET /matches/{matchId}/messages: ascending by sent time, message id
// as the deterministic tie-break.
func getMessagesHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(userIDKey).(int)

		match, ok := loadMatchForMember(db, w, r, me)
		if !ok {
			return
		}

		rows, err := db.Query(`
			SELECT id, match_id, sender_id, content, sent_at
			FROM messages
			WHERE match_id = $1
			ORDER BY sent_at ASC, id ASC
		`, match.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		defer rows.Close()

		msgs := make([]Message, 0)
		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.SentAt); err != nil {
				writeError(w, http.StatusInternalServerError, "db_error")
				return
			}
			msgs = append(msgs, m)
		}
		if err := rows.Err(); err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}

		writeJSON(w, http.StatusOK, msgs)
	})
}

// POST /matches/{matchId}/messages
// Membership check and insert run in one transaction holding the
// match row lock, so a concurrent unlike tearing the match down
// surfaces as a clean 404 instead of a broken insert. Pushes
// NewMessage to the counterparty's connections after commit; the
// sender's own clients update from the response.
func sendMessageHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		me := r.Context().Value(userIDKey).(int)

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "matches" || parts[2] != "messages" {
			http.NotFound(w, r)
			return
		}
		matchID := parts[1]

		type SendMessageRequest struct {
			Content string `json:"content"`
		}
		var req SendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		if strings.TrimSpace(req.Content) == "" {
			writeError(w, http.StatusBadRequest, "empty_content")
			return
		}

		var msg Message
		var otherUserID int
		wroteErr := false
		err := withTx(r.Context(), db, func(tx *sql.Tx) error {
			match, err := getMatchForUpdate(tx, matchID)
			if err != nil {
				return err
			}
			if match == nil {
				writeError(w, http.StatusNotFound, "not_found")
				wroteErr = true
				return nil
			}
			if !match.HasParticipant(me) {
				writeError(w, http.StatusForbidden, "forbidden")
				wroteErr = true
				return nil
			}

			msg = Message{
				ID:       uuid.NewString(),
				MatchID:  match.ID,
				SenderID: me,
				Content:  req.Content,
			}
			otherUserID = match.OtherUser(me)
			return tx.QueryRow(`
				INSERT INTO messages (id, match_id, sender_id, content)
				VALUES ($1, $2, $3, $4)
				RETURNING sent_at
			`, msg.ID, msg.MatchID, msg.SenderID, msg.Content).Scan(&msg.SentAt)
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "db_error")
			log.Println("sendMessageHandler tx error:", err)
			return
		}
		if wroteErr {
			return
		}

		matchHub.notify(otherUserID, EventNewMessage, msg)

		writeJSON(w, http.StatusCreated, msg)
	})
}
