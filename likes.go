package main

import (
	"database/sql"
)

// The like ledger: directed edges between users. Every operation takes
// the ordered (liker, likee) pair; mutuality is the existence of both
// directions. The matches table is derived state; the ledger is the
// correctness anchor, so mutuality is always recomputed from here.

// insertLikeTx records the directed edge. Returns false when the edge
// already exists (the caller surfaces that as a conflict).
func insertLikeTx(tx *sql.Tx, likerID, likeeID int) (bool, error) {
	res, err := tx.Exec(`
		INSERT INTO likes (liker_id, likee_id)
		VALUES ($1, $2)
		ON CONFLICT (liker_id, likee_id) DO NOTHING
	`, likerID, likeeID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// deleteLikeTx removes the directed edge. Idempotent: a missing edge is
// not an error. Only the caller's own edge goes away; the counterparty's
// like toward the caller is left intact.
func deleteLikeTx(tx *sql.Tx, likerID, likeeID int) error {
	_, err := tx.Exec(`
		DELETE FROM likes
		WHERE liker_id = $1 AND likee_id = $2
	`, likerID, likeeID)
	return err
}

// isMutualTx reports whether the reverse edge (likee -> liker) exists,
// i.e. whether an edge just inserted by liker completes a mutual like.
func isMutualTx(tx *sql.Tx, likerID, likeeID int) (bool, error) {
	var mutual bool
	err := tx.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM likes WHERE liker_id = $1 AND likee_id = $2
		)
	`, likeeID, likerID).Scan(&mutual)
	return mutual, err
}

// likedSet returns every user id the viewer has liked, as one bulk
// query. Used for LikeStatus annotation so list endpoints never do
// per-candidate lookups.
func likedSet(db *sql.DB, userID int) (map[int]struct{}, error) {
	rows, err := db.Query(`SELECT likee_id FROM likes WHERE liker_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}

// matchedSet returns the counterparty ids of every match the viewer is
// part of, regardless of which side initiated. One bulk query.
func matchedSet(db *sql.DB, userID int) (map[int]struct{}, error) {
	rows, err := db.Query(`
		SELECT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
		FROM matches
		WHERE user1_id = $1 OR user2_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[int]struct{})
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		set[id] = struct{}{}
	}
	return set, rows.Err()
}
