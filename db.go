package main

import (
	"database/sql"
	"log"
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
)

var db *sql.DB

func initDB() {
	// Get database URL from environment variable, fallback to default for development
	connStr := os.Getenv("DATABASE_URL")
	if connStr == "" {
		connStr = "user=admin password=password dbname=masqueradedb sslmode=disable"
		log.Default().Println("Warning: DATABASE_URL not set, using default connection string")
	}

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	err = db.Ping()
	if err != nil {
		log.Fatal("Cannot reach the database:", err)
	}
	log.Default().Println("Database connection established successfully")

	if err := initSchema(db); err != nil {
		log.Fatal("Error initializing database schema:", err)
	}
}

// initSchema creates missing tables and indexes on startup so a fresh
// database is usable without manual setup.
//
// The pair-uniqueness rules live here, not in application code:
//   - likes is keyed by the ordered (liker, likee) pair
//   - matches carries a unique index over the unordered pair, so two
//     concurrent mutual likes cannot produce two match rows
func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            SERIAL PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profiles (
    id                TEXT PRIMARY KEY,
    user_id           INT NOT NULL UNIQUE REFERENCES users(id),
    display_name      TEXT NOT NULL,
    animal_avatar_url TEXT NOT NULL,
    animal_type       TEXT NOT NULL DEFAULT '',
    gender            TEXT NOT NULL DEFAULT '',
    looking_for       TEXT NOT NULL DEFAULT '',
    faith             TEXT,
    political_leaning TEXT,
    layout            JSONB NOT NULL DEFAULT '{}',
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS profile_tags (
    id         SERIAL PRIMARY KEY,
    profile_id TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    category   TEXT NOT NULL,
    value      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS profile_tags_profile_idx ON profile_tags (profile_id);

CREATE TABLE IF NOT EXISTS likes (
    liker_id   INT NOT NULL REFERENCES users(id),
    likee_id   INT NOT NULL REFERENCES users(id),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (liker_id, likee_id)
);

CREATE TABLE IF NOT EXISTS matches (
    id         TEXT PRIMARY KEY,
    user1_id   INT NOT NULL REFERENCES users(id),
    user2_id   INT NOT NULL REFERENCES users(id),
    status     TEXT NOT NULL DEFAULT 'matched',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS matches_pair_idx
    ON matches (LEAST(user1_id, user2_id), GREATEST(user1_id, user2_id));

CREATE TABLE IF NOT EXISTS messages (
    id        TEXT PRIMARY KEY,
    match_id  TEXT NOT NULL REFERENCES matches(id),
    sender_id INT NOT NULL REFERENCES users(id),
    content   TEXT NOT NULL,
    sent_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS messages_match_idx ON messages (match_id, sent_at);
`
	_, err := db.Exec(schema)
	return err
}
