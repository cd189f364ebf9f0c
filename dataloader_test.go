package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// PROFILE LOADER TEST SUITE
// ============================================================================

func TestProfileLoaderBatching(t *testing.T) {
	userA := createTestUser(t, "loader_a@example.com", "passwordA")
	userB := createTestUser(t, "loader_b@example.com", "passwordB")
	userNoProfile := createTestUser(t, "loader_np@example.com", "passwordN")
	defer cleanupTestData(userA.Email, userB.Email, userNoProfile.Email)

	profA := getDefaultTestProfile()
	profA.DisplayName = "Loader A"
	profA.MusicGenres = []string{"dub", "ambient"}
	profileAID := createTestProfile(t, userA, profA)

	profB := getDefaultTestProfile()
	profB.DisplayName = "Loader B"
	createTestProfile(t, userB, profB)

	loader := newProfileLoader(db)
	ctx := context.Background()

	t.Run("Resolves a batch in key order", func(t *testing.T) {
		results := loader.LoadMany(ctx, []int{userB.ID, userA.ID})
		require.Len(t, results, 2)
		require.NotNil(t, results[0])
		require.NotNil(t, results[1])
		assert.Equal(t, "Loader B", results[0].DisplayName)
		assert.Equal(t, "Loader A", results[1].DisplayName)
		assert.Equal(t, profileAID, results[1].ID)
	})

	t.Run("Tags come back with the batch", func(t *testing.T) {
		results := loader.LoadMany(ctx, []int{userA.ID})
		require.Len(t, results, 1)
		require.NotNil(t, results[0])
		assert.Equal(t, []string{"dub", "ambient"}, results[0].MusicGenres)
	})

	t.Run("Missing profiles resolve to nil", func(t *testing.T) {
		results := loader.LoadMany(ctx, []int{userNoProfile.ID, userA.ID})
		require.Len(t, results, 2)
		assert.Nil(t, results[0])
		assert.NotNil(t, results[1])
	})

	t.Run("Empty key list", func(t *testing.T) {
		assert.Nil(t, loader.LoadMany(ctx, nil))
	})
}
