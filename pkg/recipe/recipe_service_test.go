package recipe

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/internal/utils/storage"
	"Foodgram-Backend/pkg/ingredient"
	"Foodgram-Backend/pkg/tag"
	"Foodgram-Backend/pkg/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testImage = "data:image/png;base64,aGVsbG8="

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&entities.User{},
		&entities.Tag{},
		&entities.Ingredient{},
		&entities.Recipe{},
		&entities.RecipeIngredient{},
		&entities.Subscription{},
		&entities.Favorite{},
		&entities.ShoppingCartEntry{},
	))
	return db
}

func newTestRecipeService(t *testing.T, db *gorm.DB) RecipeService {
	t.Helper()
	return NewRecipeService(
		NewRecipeRepository(db),
		user.NewUserRepository(db),
		tag.NewTagRepository(db),
		ingredient.NewIngredientRepository(db),
		storage.NewLocalStorage(t.TempDir(), "http://localhost:8000"),
	)
}

func seedUser(t *testing.T, db *gorm.DB, username string) *entities.User {
	t.Helper()
	u := &entities.User{
		ID:        uuid.New(),
		Email:     username + "@example.com",
		Username:  username,
		FirstName: "Test",
		LastName:  "User",
		Password:  "hashed",
		Role:      domain.RoleUser,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedTag(t *testing.T, db *gorm.DB, name, slug string) *entities.Tag {
	t.Helper()
	tg := &entities.Tag{ID: uuid.New(), Name: name, Color: "#49B64E", Slug: slug}
	require.NoError(t, db.Create(tg).Error)
	return tg
}

func seedIngredient(t *testing.T, db *gorm.DB, name, unit string) *entities.Ingredient {
	t.Helper()
	ing := &entities.Ingredient{ID: uuid.New(), Name: name, MeasurementUnit: unit}
	require.NoError(t, db.Create(ing).Error)
	return ing
}

func seedRecipe(t *testing.T, db *gorm.DB, author *entities.User, name string, publishedAt time.Time, tags []*entities.Tag, amounts map[*entities.Ingredient]int) *entities.Recipe {
	t.Helper()

	r := &entities.Recipe{
		ID:          uuid.New(),
		AuthorID:    author.ID,
		Name:        name,
		Image:       "http://localhost:8000/media/" + name + ".png",
		Text:        "how to cook " + name,
		CookingTime: 10,
		PublishedAt: publishedAt,
	}
	rows := make([]*entities.RecipeIngredient, 0, len(amounts))
	for ing, amount := range amounts {
		rows = append(rows, &entities.RecipeIngredient{
			ID:           uuid.New(),
			RecipeID:     r.ID,
			IngredientID: ing.ID,
			Amount:       amount,
		})
	}
	require.NoError(t, NewRecipeRepository(db).CreateRecipe(context.Background(), r, rows, tags))
	return r
}

func modifyRequest(tags []*entities.Tag, amounts []domain.RecipeIngredientRequest) domain.ModifyRecipeRequest {
	req := domain.ModifyRecipeRequest{
		Name:        "Borscht",
		Text:        "Boil, then simmer.",
		CookingTime: 45,
		Image:       testImage,
		Ingredients: amounts,
	}
	for _, tg := range tags {
		req.Tags = append(req.Tags, tg.ID.String())
	}
	return req
}

func TestCreateRecipe(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	dinner := seedTag(t, db, "Dinner", "dinner")
	beet := seedIngredient(t, db, "beet", "g")
	cabbage := seedIngredient(t, db, "cabbage", "g")

	req := modifyRequest([]*entities.Tag{dinner}, []domain.RecipeIngredientRequest{
		{ID: beet.ID.String(), Amount: 300},
		{ID: cabbage.ID.String(), Amount: 200},
	})

	res, err := service.CreateRecipe(ctx, req, author.ID.String())
	require.NoError(t, err)

	assert.Equal(t, "Borscht", res.Name)
	assert.Equal(t, 45, res.CookingTime)
	assert.Equal(t, "chef", res.Author.Username)
	assert.False(t, res.IsFavorited)
	assert.False(t, res.IsInShoppingCart)
	assert.True(t, strings.HasPrefix(res.Image, "http://localhost:8000/media/"))

	require.Len(t, res.Tags, 1)
	assert.Equal(t, "dinner", res.Tags[0].Slug)

	require.Len(t, res.Ingredients, 2)
	byName := map[string]domain.RecipeIngredientResponse{}
	for _, item := range res.Ingredients {
		byName[item.Name] = item
	}
	assert.Equal(t, 300, byName["beet"].Amount)
	assert.Equal(t, "g", byName["beet"].MeasurementUnit)
	assert.Equal(t, 200, byName["cabbage"].Amount)
}

func TestCreateRecipeUnknownReferences(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	dinner := seedTag(t, db, "Dinner", "dinner")
	beet := seedIngredient(t, db, "beet", "g")

	t.Run("unknown tag", func(t *testing.T) {
		req := modifyRequest([]*entities.Tag{dinner}, []domain.RecipeIngredientRequest{
			{ID: beet.ID.String(), Amount: 300},
		})
		req.Tags = []string{uuid.NewString()}

		_, err := service.CreateRecipe(ctx, req, author.ID.String())
		assert.ErrorIs(t, err, domain.ErrUnknownTag)
	})

	t.Run("unknown ingredient", func(t *testing.T) {
		req := modifyRequest([]*entities.Tag{dinner}, []domain.RecipeIngredientRequest{
			{ID: uuid.NewString(), Amount: 300},
		})

		_, err := service.CreateRecipe(ctx, req, author.ID.String())
		assert.ErrorIs(t, err, domain.ErrUnknownIngredient)
	})
}

func TestGetRecipesFilters(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	chef := seedUser(t, db, "chef")
	baker := seedUser(t, db, "baker")
	viewer := seedUser(t, db, "viewer")

	breakfast := seedTag(t, db, "Breakfast", "breakfast")
	dinner := seedTag(t, db, "Dinner", "dinner")
	egg := seedIngredient(t, db, "egg", "pcs")

	base := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	omelette := seedRecipe(t, db, chef, "omelette", base, []*entities.Tag{breakfast}, map[*entities.Ingredient]int{egg: 2})
	stew := seedRecipe(t, db, chef, "stew", base.Add(time.Hour), []*entities.Tag{dinner}, map[*entities.Ingredient]int{egg: 1})
	seedRecipe(t, db, baker, "pie", base.Add(2*time.Hour), []*entities.Tag{dinner}, map[*entities.Ingredient]int{egg: 3})

	require.NoError(t, db.Create(&entities.Favorite{
		ID: uuid.New(), UserID: viewer.ID, RecipeID: omelette.ID, CreatedAt: time.Now(),
	}).Error)

	viewerID := viewer.ID.String()
	yes, no := true, false

	t.Run("no filter returns newest first", func(t *testing.T) {
		recipes, count, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{}, 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
		require.Len(t, recipes, 3)
		assert.Equal(t, "pie", recipes[0].Name)
		assert.Equal(t, "stew", recipes[1].Name)
		assert.Equal(t, "omelette", recipes[2].Name)
	})

	t.Run("single tag", func(t *testing.T) {
		recipes, _, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{Tags: []string{"breakfast"}}, 1, 10)
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, "omelette", recipes[0].Name)
	})

	t.Run("repeated tags union", func(t *testing.T) {
		recipes, _, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{Tags: []string{"breakfast", "dinner"}}, 1, 10)
		require.NoError(t, err)
		assert.Len(t, recipes, 3)
	})

	t.Run("tag and author combine", func(t *testing.T) {
		filter := domain.RecipeFilter{Tags: []string{"dinner"}, Author: chef.ID.String()}
		recipes, _, err := service.GetRecipes(ctx, viewerID, filter, 1, 10)
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, stew.ID.String(), recipes[0].ID)
	})

	t.Run("favorited true", func(t *testing.T) {
		recipes, _, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{IsFavorited: &yes}, 1, 10)
		require.NoError(t, err)
		require.Len(t, recipes, 1)
		assert.Equal(t, "omelette", recipes[0].Name)
		assert.True(t, recipes[0].IsFavorited)
	})

	t.Run("favorited false excludes", func(t *testing.T) {
		recipes, _, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{IsFavorited: &no}, 1, 10)
		require.NoError(t, err)
		assert.Len(t, recipes, 2)
		for _, r := range recipes {
			assert.NotEqual(t, "omelette", r.Name)
		}
	})

	t.Run("anonymous viewer with marker filter gets nothing", func(t *testing.T) {
		recipes, count, err := service.GetRecipes(ctx, "", domain.RecipeFilter{IsFavorited: &yes}, 1, 10)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.Empty(t, recipes)

		recipes, _, err = service.GetRecipes(ctx, "", domain.RecipeFilter{IsInShoppingCart: &no}, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, recipes)
	})

	t.Run("pagination", func(t *testing.T) {
		recipes, count, err := service.GetRecipes(ctx, viewerID, domain.RecipeFilter{}, 2, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 3, count)
		require.Len(t, recipes, 1)
		assert.Equal(t, "omelette", recipes[0].Name)
	})
}

func TestUpdateRecipeReplacesIngredientList(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	dinner := seedTag(t, db, "Dinner", "dinner")
	salt := seedIngredient(t, db, "salt", "g")
	pepper := seedIngredient(t, db, "pepper", "g")

	created, err := service.CreateRecipe(ctx, modifyRequest(
		[]*entities.Tag{dinner},
		[]domain.RecipeIngredientRequest{{ID: salt.ID.String(), Amount: 5}},
	), author.ID.String())
	require.NoError(t, err)

	update := modifyRequest(
		[]*entities.Tag{dinner},
		[]domain.RecipeIngredientRequest{{ID: pepper.ID.String(), Amount: 2}},
	)
	update.Name = "Spicy Borscht"
	update.Image = created.Image // keep the stored link untouched

	res, err := service.UpdateRecipe(ctx, created.ID, update, author.ID.String(), domain.RoleUser)
	require.NoError(t, err)

	assert.Equal(t, "Spicy Borscht", res.Name)
	require.Len(t, res.Ingredients, 1)
	assert.Equal(t, "pepper", res.Ingredients[0].Name)
	assert.Equal(t, 2, res.Ingredients[0].Amount)

	var rows int64
	require.NoError(t, db.Model(&entities.RecipeIngredient{}).Where("recipe_id = ?", created.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestModifyRecipePermissions(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	stranger := seedUser(t, db, "stranger")
	dinner := seedTag(t, db, "Dinner", "dinner")
	salt := seedIngredient(t, db, "salt", "g")

	req := modifyRequest([]*entities.Tag{dinner}, []domain.RecipeIngredientRequest{{ID: salt.ID.String(), Amount: 5}})
	created, err := service.CreateRecipe(ctx, req, author.ID.String())
	require.NoError(t, err)

	_, err = service.UpdateRecipe(ctx, created.ID, req, stranger.ID.String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)

	err = service.DeleteRecipe(ctx, created.ID, stranger.ID.String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrNotRecipeAuthor)

	// admins can moderate any recipe
	_, err = service.UpdateRecipe(ctx, created.ID, req, stranger.ID.String(), domain.RoleAdmin)
	assert.NoError(t, err)

	err = service.DeleteRecipe(ctx, uuid.NewString(), author.ID.String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}

func TestRecipeLookupNormalizesIDs(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	dinner := seedTag(t, db, "Dinner", "dinner")
	salt := seedIngredient(t, db, "salt", "g")

	recipe := seedRecipe(t, db, author, "soup", time.Now(), []*entities.Tag{dinner}, map[*entities.Ingredient]int{salt: 5})

	// an uppercase rendition of the id resolves to the same recipe
	detail, err := service.GetRecipeDetail(ctx, "", strings.ToUpper(recipe.ID.String()))
	require.NoError(t, err)
	assert.Equal(t, recipe.ID.String(), detail.ID)

	// a value that is not a uuid at all is an absent recipe, never a driver error
	_, err = service.GetRecipeDetail(ctx, "", "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	_, err = service.UpdateRecipe(ctx, "not-a-uuid", modifyRequest([]*entities.Tag{dinner}, []domain.RecipeIngredientRequest{{ID: salt.ID.String(), Amount: 5}}), author.ID.String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	err = service.DeleteRecipe(ctx, "not-a-uuid", author.ID.String(), domain.RoleUser)
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	_, err = service.AddFavorite(ctx, author.ID.String(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	err = service.RemoveFavorite(ctx, author.ID.String(), "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrNotFavorited)
}

func TestDeleteRecipeRemovesDependents(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	fan := seedUser(t, db, "fan")
	dinner := seedTag(t, db, "Dinner", "dinner")
	salt := seedIngredient(t, db, "salt", "g")

	recipe := seedRecipe(t, db, author, "soup", time.Now(), []*entities.Tag{dinner}, map[*entities.Ingredient]int{salt: 5})

	require.NoError(t, db.Create(&entities.Favorite{
		ID: uuid.New(), UserID: fan.ID, RecipeID: recipe.ID, CreatedAt: time.Now(),
	}).Error)
	require.NoError(t, db.Create(&entities.ShoppingCartEntry{
		ID: uuid.New(), UserID: fan.ID, RecipeID: recipe.ID, CreatedAt: time.Now(),
	}).Error)

	require.NoError(t, service.DeleteRecipe(ctx, recipe.ID.String(), author.ID.String(), domain.RoleUser))

	_, err := service.GetRecipeDetail(ctx, "", recipe.ID.String())
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)

	for _, model := range []any{&entities.Favorite{}, &entities.ShoppingCartEntry{}, &entities.RecipeIngredient{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("recipe_id = ?", recipe.ID).Count(&count).Error)
		assert.Zero(t, count)
	}
}

func TestFavoriteLifecycle(t *testing.T) {
	db := setupTestDB(t)
	service := newTestRecipeService(t, db)
	ctx := context.Background()

	author := seedUser(t, db, "chef")
	fan := seedUser(t, db, "fan")
	dinner := seedTag(t, db, "Dinner", "dinner")
	salt := seedIngredient(t, db, "salt", "g")

	recipe := seedRecipe(t, db, author, "soup", time.Now(), []*entities.Tag{dinner}, map[*entities.Ingredient]int{salt: 5})

	summary, err := service.AddFavorite(ctx, fan.ID.String(), recipe.ID.String())
	require.NoError(t, err)
	assert.Equal(t, recipe.ID.String(), summary.ID)
	assert.Equal(t, "soup", summary.Name)

	_, err = service.AddFavorite(ctx, fan.ID.String(), recipe.ID.String())
	assert.ErrorIs(t, err, domain.ErrAlreadyFavorited)

	var count int64
	require.NoError(t, db.Model(&entities.Favorite{}).Where("user_id = ?", fan.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	detail, err := service.GetRecipeDetail(ctx, fan.ID.String(), recipe.ID.String())
	require.NoError(t, err)
	assert.True(t, detail.IsFavorited)

	require.NoError(t, service.RemoveFavorite(ctx, fan.ID.String(), recipe.ID.String()))
	assert.ErrorIs(t, service.RemoveFavorite(ctx, fan.ID.String(), recipe.ID.String()), domain.ErrNotFavorited)

	_, err = service.AddFavorite(ctx, fan.ID.String(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrRecipeNotFound)
}
