package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/internal/policy"
	"Foodgram-Backend/internal/utils"
	"Foodgram-Backend/internal/utils/storage"
	"Foodgram-Backend/pkg/ingredient"
	"Foodgram-Backend/pkg/tag"
	"Foodgram-Backend/pkg/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	RecipeService interface {
		GetRecipes(ctx context.Context, viewerID string, filter domain.RecipeFilter, page, limit int) ([]domain.RecipeResponse, int64, error)
		GetRecipeDetail(ctx context.Context, viewerID, recipeID string) (domain.RecipeResponse, error)
		CreateRecipe(ctx context.Context, req domain.ModifyRecipeRequest, userID string) (domain.RecipeResponse, error)
		UpdateRecipe(ctx context.Context, recipeID string, req domain.ModifyRecipeRequest, userID, role string) (domain.RecipeResponse, error)
		DeleteRecipe(ctx context.Context, recipeID string, userID, role string) error
		AddFavorite(ctx context.Context, userID, recipeID string) (domain.RecipeSummary, error)
		RemoveFavorite(ctx context.Context, userID, recipeID string) error
	}

	recipeService struct {
		recipeRepository     RecipeRepository
		userRepository       user.UserRepository
		tagRepository        tag.TagRepository
		ingredientRepository ingredient.IngredientRepository
		storage              storage.Storage
	}
)

func NewRecipeService(
	recipeRepository RecipeRepository,
	userRepository user.UserRepository,
	tagRepository tag.TagRepository,
	ingredientRepository ingredient.IngredientRepository,
	storage storage.Storage,
) RecipeService {
	return &recipeService{
		recipeRepository:     recipeRepository,
		userRepository:       userRepository,
		tagRepository:        tagRepository,
		ingredientRepository: ingredientRepository,
		storage:              storage,
	}
}

func ToRecipeSummary(recipe *entities.Recipe) domain.RecipeSummary {
	return domain.RecipeSummary{
		ID:          recipe.ID.String(),
		Name:        recipe.Name,
		Image:       recipe.Image,
		CookingTime: recipe.CookingTime,
	}
}

func (s *recipeService) GetRecipes(ctx context.Context, viewerID string, filter domain.RecipeFilter, page, limit int) ([]domain.RecipeResponse, int64, error) {
	// an anonymous viewer has no favorites and no cart: filtering on either
	// yields nothing rather than an error
	if viewerID == "" && (filter.IsFavorited != nil || filter.IsInShoppingCart != nil) {
		return []domain.RecipeResponse{}, 0, nil
	}

	recipes, count, err := s.recipeRepository.GetRecipes(ctx, viewerID, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	response, err := s.buildResponses(ctx, viewerID, recipes)
	if err != nil {
		return nil, 0, err
	}
	return response, count, nil
}

func (s *recipeService) GetRecipeDetail(ctx context.Context, viewerID, recipeID string) (domain.RecipeResponse, error) {
	// a malformed id is just an absent recipe, never a driver error
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrRecipeNotFound
	}

	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	responses, err := s.buildResponses(ctx, viewerID, []*entities.Recipe{recipe})
	if err != nil {
		return domain.RecipeResponse{}, err
	}
	return responses[0], nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, req domain.ModifyRecipeRequest, userID string) (domain.RecipeResponse, error) {
	authorUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrParseUUID
	}

	tags, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipeID := uuid.New()
	ingredients, err := s.resolveIngredients(ctx, recipeID, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	image, err := s.resolveImage(recipeID, req.Image)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	recipe := &entities.Recipe{
		ID:          recipeID,
		AuthorID:    authorUUID,
		Name:        req.Name,
		Image:       image,
		Text:        req.Text,
		CookingTime: req.CookingTime,
		PublishedAt: time.Now(),
	}

	if err := s.recipeRepository.CreateRecipe(ctx, recipe, ingredients, tags); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, userID, recipeID.String())
}

func (s *recipeService) UpdateRecipe(ctx context.Context, recipeID string, req domain.ModifyRecipeRequest, userID, role string) (domain.RecipeResponse, error) {
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.RecipeResponse{}, domain.ErrRecipeNotFound
	}

	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeResponse{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeResponse{}, err
	}

	if !policy.CanModifyRecipe(userID, role, recipe) {
		return domain.RecipeResponse{}, domain.ErrNotRecipeAuthor
	}

	tags, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	ingredients, err := s.resolveIngredients(ctx, recipe.ID, req.Ingredients)
	if err != nil {
		return domain.RecipeResponse{}, err
	}

	if strings.HasPrefix(req.Image, "data:") {
		image, err := s.resolveImage(recipe.ID, req.Image)
		if err != nil {
			return domain.RecipeResponse{}, err
		}
		if recipe.Image != "" {
			_ = s.storage.Delete(recipe.Image)
		}
		recipe.Image = image
	}

	recipe.Name = req.Name
	recipe.Text = req.Text
	recipe.CookingTime = req.CookingTime
	recipe.Tags = nil
	recipe.Ingredients = nil

	if err := s.recipeRepository.UpdateRecipe(ctx, recipe, ingredients, tags); err != nil {
		return domain.RecipeResponse{}, err
	}

	return s.GetRecipeDetail(ctx, userID, recipeUUID.String())
}

func (s *recipeService) DeleteRecipe(ctx context.Context, recipeID string, userID, role string) error {
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.ErrRecipeNotFound
	}

	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrRecipeNotFound
		}
		return err
	}

	if !policy.CanModifyRecipe(userID, role, recipe) {
		return domain.ErrNotRecipeAuthor
	}

	if recipe.Image != "" {
		_ = s.storage.Delete(recipe.Image)
	}

	return s.recipeRepository.DeleteRecipe(ctx, recipe)
}

func (s *recipeService) AddFavorite(ctx context.Context, userID, recipeID string) (domain.RecipeSummary, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeSummary{}, domain.ErrParseUUID
	}

	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.RecipeSummary{}, domain.ErrRecipeNotFound
	}

	recipe, err := s.recipeRepository.GetRecipeByID(ctx, recipeUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeSummary{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeSummary{}, err
	}

	favorite := &entities.Favorite{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  recipe.ID,
		CreatedAt: time.Now(),
	}

	// the unique index resolves concurrent duplicate adds, no pre-check
	if err := s.recipeRepository.AddFavorite(ctx, favorite); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeSummary{}, domain.ErrAlreadyFavorited
		}
		return domain.RecipeSummary{}, err
	}

	return ToRecipeSummary(recipe), nil
}

func (s *recipeService) RemoveFavorite(ctx context.Context, userID, recipeID string) error {
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.ErrNotFavorited
	}

	rows, err := s.recipeRepository.RemoveFavorite(ctx, userID, recipeUUID.String())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFavorited
	}
	return nil
}

func (s *recipeService) resolveTags(ctx context.Context, ids []string) ([]*entities.Tag, error) {
	tagIDs := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		tagUUID, err := uuid.Parse(id)
		if err != nil {
			return nil, domain.ErrParseUUID
		}
		if !seen[tagUUID] {
			seen[tagUUID] = true
			tagIDs = append(tagIDs, tagUUID)
		}
	}

	tags, err := s.tagRepository.GetTagsByIDs(ctx, tagIDs)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(tagIDs) {
		return nil, domain.ErrUnknownTag
	}
	return tags, nil
}

func (s *recipeService) resolveIngredients(ctx context.Context, recipeID uuid.UUID, reqs []domain.RecipeIngredientRequest) ([]*entities.RecipeIngredient, error) {
	ingredientIDs := make([]uuid.UUID, 0, len(reqs))
	amounts := make(map[uuid.UUID]int)
	for _, req := range reqs {
		ingredientUUID, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, domain.ErrParseUUID
		}
		if _, ok := amounts[ingredientUUID]; !ok {
			ingredientIDs = append(ingredientIDs, ingredientUUID)
		}
		amounts[ingredientUUID] = req.Amount
	}

	found, err := s.ingredientRepository.GetIngredientsByIDs(ctx, ingredientIDs)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ingredientIDs) {
		return nil, domain.ErrUnknownIngredient
	}

	rows := make([]*entities.RecipeIngredient, 0, len(ingredientIDs))
	for _, ingredientID := range ingredientIDs {
		rows = append(rows, &entities.RecipeIngredient{
			ID:           uuid.New(),
			RecipeID:     recipeID,
			IngredientID: ingredientID,
			Amount:       amounts[ingredientID],
		})
	}
	return rows, nil
}

func (s *recipeService) resolveImage(recipeID uuid.UUID, image string) (string, error) {
	if !strings.HasPrefix(image, "data:") {
		return image, nil
	}

	data, ext, err := utils.DecodeDataURI(image)
	if err != nil {
		return "", domain.ErrInvalidImage
	}

	fileName := fmt.Sprintf("recipe-%s.%s", recipeID.String(), ext)
	return s.storage.Save(fileName, data, "image/"+ext)
}

func (s *recipeService) buildResponses(ctx context.Context, viewerID string, recipes []*entities.Recipe) ([]domain.RecipeResponse, error) {
	recipeIDs := make([]uuid.UUID, 0, len(recipes))
	authorIDs := make([]uuid.UUID, 0, len(recipes))
	for _, recipe := range recipes {
		recipeIDs = append(recipeIDs, recipe.ID)
		authorIDs = append(authorIDs, recipe.AuthorID)
	}

	favorited, err := s.recipeRepository.FavoritedRecipeIDs(ctx, viewerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	inCart, err := s.recipeRepository.InCartRecipeIDs(ctx, viewerID, recipeIDs)
	if err != nil {
		return nil, err
	}
	subscribed, err := s.userRepository.SubscribedAuthorIDs(ctx, viewerID, authorIDs)
	if err != nil {
		return nil, err
	}

	response := make([]domain.RecipeResponse, 0, len(recipes))
	for _, recipe := range recipes {
		tags := make([]domain.TagResponse, 0, len(recipe.Tags))
		for _, t := range recipe.Tags {
			tags = append(tags, tag.ToTagResponse(t))
		}

		ingredients := make([]domain.RecipeIngredientResponse, 0, len(recipe.Ingredients))
		for _, row := range recipe.Ingredients {
			item := domain.RecipeIngredientResponse{
				ID:     row.IngredientID.String(),
				Amount: row.Amount,
			}
			if row.Ingredient != nil {
				item.Name = row.Ingredient.Name
				item.MeasurementUnit = row.Ingredient.MeasurementUnit
			}
			ingredients = append(ingredients, item)
		}

		author := domain.UserResponse{}
		if recipe.Author != nil {
			author = user.ToUserResponse(recipe.Author, subscribed[recipe.AuthorID])
		}

		response = append(response, domain.RecipeResponse{
			ID:               recipe.ID.String(),
			Tags:             tags,
			Author:           author,
			Ingredients:      ingredients,
			IsFavorited:      favorited[recipe.ID],
			IsInShoppingCart: inCart[recipe.ID],
			Name:             recipe.Name,
			Image:            recipe.Image,
			Text:             recipe.Text,
			CookingTime:      recipe.CookingTime,
			PublishedAt:      recipe.PublishedAt,
		})
	}
	return response, nil
}
