package zento

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelsMatchMigratedTables(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	models := Models()
	require.Len(t, models, 5)

	for _, model := range models {
		n, err := db.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err, "%T", model)
		assert.Zero(t, n, "%T", model)
	}
}
