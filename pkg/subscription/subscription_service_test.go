package subscription

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/pkg/recipe"
	"Foodgram-Backend/pkg/user"

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

	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Recipe{},
		&entities.RecipeIngredient{},
		&entities.Subscription{},
	))
	return db
}

func newTestSubscriptionService(db *gorm.DB) SubscriptionService {
	return NewSubscriptionService(
		NewSubscriptionRepository(db),
		user.NewUserRepository(db),
		recipe.NewRecipeRepository(db),
	)
}

func seedUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	t.Helper()
	u := &entities.User{
		ID:       uuid.New(),
		Email:    username + "@example.com",
		Username: username,
		Password: "hashed",
		Role:     domain.RoleUser,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedRecipe(t *testing.T, db *gorm.DB, author *entities.User, name string, publishedAt time.Time) *entities.Recipe {
	t.Helper()
	r := &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    author.ID,
		Name:        name,
		Text:        "how to cook " + name,
		CookingTime: 10,
		PublishedAt: publishedAt,
	}
	require.NoError(t, db.Create(r).Error)
	return r
}

func TestSubscribe(t *testing.T) {
	db := setupTestDB(t)
	service := newTestSubscriptionService(db)
	ctx := context.Background()

	reader := seedUser(t, db, "reader")
	author := seedUser(t, db, "author")

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	seedRecipe(t, db, author, "soup", base)
	newest := seedRecipe(t, db, author, "pie", base.Add(time.Hour))

	res, err := service.Subscribe(ctx, reader.ID.String(), author.ID.String(), 1)
	require.NoError(t, err)

	assert.Equal(t, author.ID.String(), res.ID)
	assert.Equal(t, "author", res.Username)
	assert.True(t, res.IsSubscribed)
	assert.EqualValues(t, 2, res.RecipesCount)

	// recipes_limit truncates the preview, newest first
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, newest.ID.String(), res.Recipes[0].ID)

	// an explicit zero limit empties the preview but keeps the count
	subs, _, err := service.GetSubscriptions(ctx, reader.ID.String(), 0, 1, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Recipes)
	assert.EqualValues(t, 2, subs[0].RecipesCount)

	// a negative limit means no cap
	subs, _, err = service.GetSubscriptions(ctx, reader.ID.String(), -1, 1, 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Len(t, subs[0].Recipes, 2)
}

func TestSubscribeRejections(t *testing.T) {
	db := setupTestDB(t)
	service := newTestSubscriptionService(db)
	ctx := context.Background()

	reader := seedUser(t, db, "reader")
	author := seedUser(t, db, "author")

	_, err := service.Subscribe(ctx, reader.ID.String(), reader.ID.String(), 0)
	assert.ErrorIs(t, err, domain.ErrSelfSubscription)

	// an uppercase or braced rendition of the caller's own id is still a
	// self-subscription
	_, err = service.Subscribe(ctx, reader.ID.String(), strings.ToUpper(reader.ID.String()), 0)
	assert.ErrorIs(t, err, domain.ErrSelfSubscription)

	_, err = service.Subscribe(ctx, reader.ID.String(), "{"+reader.ID.String()+"}", 0)
	assert.ErrorIs(t, err, domain.ErrSelfSubscription)

	_, err = service.Subscribe(ctx, reader.ID.String(), uuid.NewString(), 0)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = service.Subscribe(ctx, reader.ID.String(), "not-a-uuid", 0)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = service.Subscribe(ctx, reader.ID.String(), author.ID.String(), 0)
	require.NoError(t, err)

	_, err = service.Subscribe(ctx, reader.ID.String(), author.ID.String(), 0)
	assert.ErrorIs(t, err, domain.ErrAlreadySubscribed)

	var count int64
	require.NoError(t, db.Model(&entities.Subscription{}).Where("user_id = ?", reader.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUnsubscribe(t *testing.T) {
	db := setupTestDB(t)
	service := newTestSubscriptionService(db)
	ctx := context.Background()

	reader := seedUser(t, db, "reader")
	author := seedUser(t, db, "author")

	_, err := service.Subscribe(ctx, reader.ID.String(), author.ID.String(), 0)
	require.NoError(t, err)

	require.NoError(t, service.Unsubscribe(ctx, reader.ID.String(), author.ID.String()))
	assert.ErrorIs(t, service.Unsubscribe(ctx, reader.ID.String(), author.ID.String()), domain.ErrNotSubscribed)
	assert.ErrorIs(t, service.Unsubscribe(ctx, reader.ID.String(), "not-a-uuid"), domain.ErrNotSubscribed)
}

func TestGetSubscriptions(t *testing.T) {
	db := setupTestDB(t)
	service := newTestSubscriptionService(db)
	ctx := context.Background()

	reader := seedUser(t, db, "reader")
	first := seedUser(t, db, "first")
	second := seedUser(t, db, "second")
	seedUser(t, db, "ignored")

	seedRecipe(t, db, first, "soup", time.Now())

	_, err := service.Subscribe(ctx, reader.ID.String(), first.ID.String(), 0)
	require.NoError(t, err)
	_, err = service.Subscribe(ctx, reader.ID.String(), second.ID.String(), 0)
	require.NoError(t, err)

	subscriptions, count, err := service.GetSubscriptions(ctx, reader.ID.String(), 3, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
	require.Len(t, subscriptions, 2)

	usernames := []string{subscriptions[0].Username, subscriptions[1].Username}
	assert.ElementsMatch(t, []string{"first", "second"}, usernames)
	for _, sub := range subscriptions {
		assert.True(t, sub.IsSubscribed)
		if sub.Username == "first" {
			assert.EqualValues(t, 1, sub.RecipesCount)
			assert.Len(t, sub.Recipes, 1)
		}
	}

	empty, count, err := service.GetSubscriptions(ctx, second.ID.String(), 0, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, empty)
}
