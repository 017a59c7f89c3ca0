package tag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&entities.Tag{}))
	return db
}

func TestCreateTag(t *testing.T) {
	db := setupTestDB(t)
	service := NewTagService(NewTagRepository(db))
	ctx := context.Background()

	res, err := service.CreateTag(ctx, domain.CreateTagRequest{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"})
	require.NoError(t, err)
	assert.Equal(t, "Breakfast", res.Name)
	assert.Equal(t, "#E26C2D", res.Color)
	assert.Equal(t, "breakfast", res.Slug)

	_, err = service.CreateTag(ctx, domain.CreateTagRequest{Name: "Late Breakfast", Color: "#49B64E", Slug: "breakfast"})
	assert.ErrorIs(t, err, domain.ErrTagAlreadyExists)

	_, err = service.CreateTag(ctx, domain.CreateTagRequest{Name: "Breakfast", Color: "#49B64E", Slug: "brunch"})
	assert.ErrorIs(t, err, domain.ErrTagAlreadyExists)
}

func TestGetTags(t *testing.T) {
	db := setupTestDB(t)
	service := NewTagService(NewTagRepository(db))
	ctx := context.Background()

	created, err := service.CreateTag(ctx, domain.CreateTagRequest{Name: "Dinner", Color: "#8775D2", Slug: "dinner"})
	require.NoError(t, err)

	tags, err := service.GetTags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, created.ID, tags[0].ID)

	byID, err := service.GetTagByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dinner", byID.Slug)

	_, err = service.GetTagByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrTagNotFound)
}
