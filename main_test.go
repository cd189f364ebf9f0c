package main

import (
	"database/sql"
	"log"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// Test helper structures and types
type TestUser struct {
	ID       int
	Email    string
	Password string
	Token    string
}

type TestProfile struct {
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

func TestMain(m *testing.M) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	if connStr == "" {
		connStr = "host=localhost port=5433 user=masquerade_user password=masquerade_password dbname=masquerade_test sslmode=disable"
	}

	var err error
	db, err = sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Error connecting to the database:", err)
	}
	defer db.Close()

	if err := initSchema(db); err != nil {
		log.Fatal("Error initializing test schema:", err)
	}

	m.Run()
}
