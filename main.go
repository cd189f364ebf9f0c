package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"
)

// JWT secret from environment variable or fallback
func getJWTSecret() []byte {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("your_secret_key_please_change_in_production")
}

var jwtSecret = getJWTSecret()

func main() {
	// .env is optional; real deployments set the environment directly
	if err := godotenv.Load(); err == nil {
		jwtSecret = getJWTSecret()
	}

	initDB()

	mux := http.NewServeMux()

	// Core auth endpoints
	mux.Handle("/register", registerHandler(db))
	mux.Handle("/login", loginHandler(db))

	// Profiles: create, me, browse suggestions, public view
	mux.Handle("/profiles", profilesHandler(db))     // POST /profiles
	mux.Handle("/profiles/", profilesDispatcher(db)) // /profiles/{me|suggest|{id}}

	// Matches: likes, match list, match-scoped messages
	mux.Handle("/matches", matchesHandler(db))        // GET /matches
	mux.Handle("/matches/", matchesActionsRouter(db)) // /matches/like/{id}, /matches/{id}/messages

	// WebSocket push channel for NewLike / NewMatch / NewMessage
	mux.Handle("/ws/match", wsMatchHandler())

	// Health check endpoint for Docker
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Default().Println("Starting Masquerade backend on port " + port + "...")
	http.ListenAndServe(":"+port, withCORS(mux))
}
