package main

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
)

// SuggestQuery narrows and pages the candidate pool. Faith and
// political leaning are hard filters when supplied; looking_for
// overrides the requester's stored preference for this request.
type SuggestQuery struct {
	Faith            string `json:"faith"`
	PoliticalLeaning string `json:"political_leaning"`
	LookingFor       string `json:"looking_for"`
	Page             int    `json:"page"`
	PageSize         int    `json:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Scoring weights for the ranked suggestions. Tag overlap is a ranking
// signal only: a zero score keeps a candidate in the pool.
const (
	musicTagWeight = 2
	hobbyTagWeight = 3
	faithWeight    = 4
	politicsWeight = 3
)

// sharedTagCount counts distinct shared values, case-insensitively.
func sharedTagCount(mine, theirs []string) int {
	if len(mine) == 0 || len(theirs) == 0 {
		return 0
	}
	set := make(map[string]bool, len(mine))
	for _, v := range mine {
		set[strings.ToLower(v)] = true
	}
	shared := 0
	seen := make(map[string]bool, len(theirs))
	for _, v := range theirs {
		lv := strings.ToLower(v)
		if set[lv] && !seen[lv] {
			shared++
			seen[lv] = true
		}
	}
	return shared
}

// scoreCandidate computes the weighted overlap between the requester's
// profile and a candidate.
func scoreCandidate(me, cand *Profile) int {
	score := sharedTagCount(me.MusicGenres, cand.MusicGenres) * musicTagWeight
	score += sharedTagCount(me.Hobbies, cand.Hobbies) * hobbyTagWeight
	if me.Faith != "" && cand.Faith != "" && strings.EqualFold(me.Faith, cand.Faith) {
		score += faithWeight
	}
	if me.PoliticalLeaning != "" && cand.PoliticalLeaning != "" &&
		strings.EqualFold(me.PoliticalLeaning, cand.PoliticalLeaning) {
		score += politicsWeight
	}
	return score
}

// rankCandidates sorts the pool by score descending. Ties break on
// profile creation time, then id, so paging stays stable across
// requests against unchanged data.
func rankCandidates(me *Profile, pool []*Profile) []*Profile {
	scores := make(map[string]int, len(pool))
	for _, c := range pool {
		scores[c.ID] = scoreCandidate(me, c)
	}
	ranked := make([]*Profile, len(pool))
	copy(ranked, pool)
	sort.SliceStable(ranked, func(i, j int) bool {
		si, sj := scores[ranked[i].ID], scores[ranked[j].ID]
		if si != sj {
			return si > sj
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.Before(ranked[j].CreatedAt)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

func paginate(pool []*Profile, page, pageSize int) []*Profile {
	if page < 0 {
		page = 0
	}
	start := page * pageSize
	if start >= len(pool) {
		return nil
	}
	end := start + pageSize
	if end > len(pool) {
		end = len(pool)
	}
	return pool[start:end]
}

// effectiveGenderFilter resolves the looking-for/gender hard filter:
// the query's looking_for wins over the stored preference, and
// "everyone" (or nothing) means no filter at all.
func effectiveGenderFilter(me *Profile, q SuggestQuery) string {
	pref := q.LookingFor
	if pref == "" {
		pref = me.LookingFor
	}
	if strings.EqualFold(pref, "everyone") {
		return ""
	}
	return pref
}

// suggest produces the ranked, paged candidate list for userID.
// Returns (nil, nil) when the requester has no profile yet.
func suggest(db *sql.DB, userID int, q SuggestQuery) ([]*ProfileDto, error) {
	me, err := loadProfileByUser(db, userID)
	if err != nil || me == nil {
		return nil, err
	}

	if q.PageSize <= 0 {
		q.PageSize = defaultPageSize
	} else if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}

	// Hard filters are pushed into SQL; scoring stays in memory over
	// the filtered pool.
	rows, err := db.Query(`
		SELECT `+profileColumns+`
		FROM profiles
		WHERE user_id <> $1
		  AND ($2 = '' OR faith = $2)
		  AND ($3 = '' OR political_leaning = $3)
		  AND ($4 = '' OR LOWER(gender) = LOWER($4))
	`, userID, q.Faith, q.PoliticalLeaning, effectiveGenderFilter(me, q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pool []*Profile
	var poolIDs []string
	for rows.Next() {
		var p Profile
		err := rows.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.AnimalAvatarURL, &p.AnimalType,
			&p.Gender, &p.LookingFor, &p.Faith, &p.PoliticalLeaning, &p.Layout, &p.CreatedAt)
		if err != nil {
			return nil, err
		}
		pool = append(pool, &p)
		poolIDs = append(poolIDs, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// One tags query for the whole pool, one query per like/match set.
	music, hobbies, err := tagsForProfiles(db, poolIDs)
	if err != nil {
		return nil, err
	}
	for _, p := range pool {
		p.MusicGenres = music[p.ID]
		p.Hobbies = hobbies[p.ID]
	}

	liked, err := likedSet(db, userID)
	if err != nil {
		return nil, err
	}
	matched, err := matchedSet(db, userID)
	if err != nil {
		return nil, err
	}

	page := paginate(rankCandidates(me, pool), q.Page, q.PageSize)

	results := make([]*ProfileDto, 0, len(page))
	for _, p := range page {
		results = append(results, toProfileDto(p, likeStatusFor(p.UserID, liked, matched)))
	}
	return results, nil
}

// POST /profiles/suggest
func suggestHandler(db *sql.DB) http.HandlerFunc {
	return authenticate(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		var q SuggestQuery
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}

		results, err := suggest(db, userID, q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "recommendation_error")
			log.Println("suggest error:", err)
			return
		}
		if results == nil {
			// Requester has no profile yet: nothing to score against
			writeError(w, http.StatusNotFound, "not_found")
			return
		}
		writeJSON(w, http.StatusOK, results)
	})
}
