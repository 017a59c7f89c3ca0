package cart

import (
	"bytes"
	"context"
	"errors"
	"time"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/internal/utils/pdf"
	"Foodgram-Backend/pkg/recipe"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	CartService interface {
		AddToCart(ctx context.Context, userID, recipeID string) (domain.RecipeSummary, error)
		RemoveFromCart(ctx context.Context, userID, recipeID string) error
		GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error)
		DownloadShoppingList(ctx context.Context, userID string) (*bytes.Buffer, error)
	}

	cartService struct {
		cartRepository   CartRepository
		recipeRepository recipe.RecipeRepository
	}
)

func NewCartService(cartRepository CartRepository, recipeRepository recipe.RecipeRepository) CartService {
	return &cartService{
		cartRepository:   cartRepository,
		recipeRepository: recipeRepository,
	}
}

func (s *cartService) AddToCart(ctx context.Context, userID, recipeID string) (domain.RecipeSummary, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.RecipeSummary{}, domain.ErrParseUUID
	}

	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.RecipeSummary{}, domain.ErrRecipeNotFound
	}

	r, err := s.recipeRepository.GetRecipeByID(ctx, recipeUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RecipeSummary{}, domain.ErrRecipeNotFound
		}
		return domain.RecipeSummary{}, err
	}

	entry := &entities.ShoppingCartEntry{
		ID:        uuid.New(),
		UserID:    userUUID,
		RecipeID:  r.ID,
		CreatedAt: time.Now(),
	}

	// the unique index resolves concurrent duplicate adds, no pre-check
	if err := s.cartRepository.AddEntry(ctx, entry); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.RecipeSummary{}, domain.ErrAlreadyInCart
		}
		return domain.RecipeSummary{}, err
	}

	return recipe.ToRecipeSummary(r), nil
}

func (s *cartService) RemoveFromCart(ctx context.Context, userID, recipeID string) error {
	recipeUUID, err := uuid.Parse(recipeID)
	if err != nil {
		return domain.ErrNotInCart
	}

	rows, err := s.cartRepository.RemoveEntry(ctx, userID, recipeUUID.String())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotInCart
	}
	return nil
}

func (s *cartService) GetShoppingList(ctx context.Context, userID string) ([]domain.ShoppingListItem, error) {
	return s.cartRepository.GetShoppingList(ctx, userID)
}

func (s *cartService) DownloadShoppingList(ctx context.Context, userID string) (*bytes.Buffer, error) {
	items, err := s.cartRepository.GetShoppingList(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pdf.RenderShoppingList(items)
}
