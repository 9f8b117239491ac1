package inmemdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zenabi/tuzo/core/user"
	inmemdb "github.com/zenabi/tuzo/storage/database/inmem"
)

// Open allocates everything a repository needs; it has no failure path and
// callers use it as a plain expression.
func TestOpen(t *testing.T) {
	ctx := context.Background()
	repo := inmemdb.NewUserRepository(inmemdb.Open())

	usr, err := repo.CreateUser(ctx, user.User{
		Name: "Neo", Email: "neo@test.cd", Role: user.RoleLearner, IsActive: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, usr.ID)

	got, err := repo.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, usr, got)
}
