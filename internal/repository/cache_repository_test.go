package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/sports-academy-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Available())

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "leaderboard:10", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "leaderboard:10", map[string]int{"a": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "leaderboard:*"))
	assert.NoError(t, repo.Release(ctx, "campaign:c-1:student:s-1:20240601"))

	_, err := repo.Claim(ctx, "campaign:c-1:student:s-1:20240601", time.Hour)
	assert.Error(t, err)
	assert.NoError(t, repo.Close())
}
