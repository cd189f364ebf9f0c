package main

import (
	"context"
	"database/sql"
	"time"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/lib/pq"
)

// ProfileLoader batches profile lookups by user id so list endpoints
// load all counterparties with one IN-query instead of N.
type ProfileLoader struct {
	loader *dataloader.Loader[int, *ProfileDto]
}

func newProfileLoader(db *sql.DB) *ProfileLoader {
	return &ProfileLoader{
		loader: dataloader.NewBatchedLoader(profileBatchFn(db),
			dataloader.WithWait[int, *ProfileDto](16*time.Millisecond)),
	}
}

// LoadMany resolves profiles for the given user ids, preserving order.
// Ids without a profile (or with a load error) come back as nil; the
// enrichment is a projection, never a gate.
func (l *ProfileLoader) LoadMany(ctx context.Context, userIDs []int) []*ProfileDto {
	if len(userIDs) == 0 {
		return nil
	}
	results, _ := l.loader.LoadMany(ctx, userIDs)()
	return results
}

// profileBatchFn loads a batch of profiles plus their tags in two
// queries and fans the results back out in key order.
func profileBatchFn(db *sql.DB) dataloader.BatchFunc[int, *ProfileDto] {
	return func(ctx context.Context, keys []int) []*dataloader.Result[*ProfileDto] {
		results := make([]*dataloader.Result[*ProfileDto], len(keys))
		for i := range results {
			results[i] = &dataloader.Result[*ProfileDto]{}
		}
		if len(keys) == 0 {
			return results
		}

		ids := make([]int64, len(keys))
		for i, k := range keys {
			ids[i] = int64(k)
		}

		rows, err := db.QueryContext(ctx, `
			SELECT `+profileColumns+`
			FROM profiles
			WHERE user_id = ANY($1)
		`, pq.Array(ids))
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}
		defer rows.Close()

		byUser := make(map[int]*Profile, len(keys))
		var profileIDs []string
		for rows.Next() {
			var p Profile
			err := rows.Scan(&p.ID, &p.UserID, &p.DisplayName, &p.AnimalAvatarURL, &p.AnimalType,
				&p.Gender, &p.LookingFor, &p.Faith, &p.PoliticalLeaning, &p.Layout, &p.CreatedAt)
			if err != nil {
				for i := range results {
					results[i].Error = err
				}
				return results
			}
			byUser[p.UserID] = &p
			profileIDs = append(profileIDs, p.ID)
		}

		music, hobbies, err := tagsForProfiles(db, profileIDs)
		if err != nil {
			for i := range results {
				results[i].Error = err
			}
			return results
		}

		for i, key := range keys {
			if p, ok := byUser[key]; ok {
				p.MusicGenres = music[p.ID]
				p.Hobbies = hobbies[p.ID]
				results[i].Data = toProfileDto(p, LikeStatusNone)
			}
		}
		return results
	}
}
