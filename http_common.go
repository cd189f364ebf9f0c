package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
)

// --- Response helpers ---
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// withTx wraps a function in a database transaction.
// - Ensures COMMIT on success, ROLLBACK on errors or panics.
// - Keeps handler bodies tiny and all state changes atomic.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		// If the callback panics, make sure to rollback before re-panicking
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// findMatchForUpdate returns the match row between two users, in EITHER
// orientation, and takes a row lock (`FOR UPDATE`) so no other
// concurrent request can modify it until our transaction finishes.
// Returns (nil, nil) if no match exists.
func findMatchForUpdate(tx *sql.Tx, a, b int) (*Match, error) {
	row := tx.QueryRow(`
		SELECT id, user1_id, user2_id, status, created_at
		FROM matches
		WHERE (user1_id = $1 AND user2_id = $2)
		   OR (user1_id = $2 AND user2_id = $1)
		LIMIT 1
		FOR UPDATE
	`, a, b)

	var m Match
	if err := row.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.Status, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// getMatchForUpdate loads a match by id and takes a row lock, so the
// caller's writes against the match cannot race its teardown.
// Returns (nil, nil) when the id is unknown.
func getMatchForUpdate(tx *sql.Tx, matchID string) (*Match, error) {
	row := tx.QueryRow(`
		SELECT id, user1_id, user2_id, status, created_at
		FROM matches
		WHERE id = $1
		FOR UPDATE
	`, matchID)

	var m Match
	if err := row.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.Status, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// getMatch loads a match by id outside a transaction.
// Returns (nil, nil) when the id is unknown.
func getMatch(db *sql.DB, matchID string) (*Match, error) {
	row := db.QueryRow(`
		SELECT id, user1_id, user2_id, status, created_at
		FROM matches
		WHERE id = $1
	`, matchID)

	var m Match
	if err := row.Scan(&m.ID, &m.User1ID, &m.User2ID, &m.Status, &m.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}
