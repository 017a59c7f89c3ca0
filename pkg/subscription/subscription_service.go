package subscription

import (
	"context"
	"errors"
	"time"

	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
	"Foodgram-Backend/pkg/recipe"
	"Foodgram-Backend/pkg/user"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type (
	// recipesLimit caps the recipe preview on each returned author:
	// negative means no cap, zero an empty preview.
	SubscriptionService interface {
		Subscribe(ctx context.Context, userID, authorID string, recipesLimit int) (domain.SubscriptionResponse, error)
		Unsubscribe(ctx context.Context, userID, authorID string) error
		GetSubscriptions(ctx context.Context, userID string, recipesLimit, page, limit int) ([]domain.SubscriptionResponse, int64, error)
	}

	subscriptionService struct {
		subscriptionRepository SubscriptionRepository
		userRepository         user.UserRepository
		recipeRepository       recipe.RecipeRepository
	}
)

func NewSubscriptionService(
	subscriptionRepository SubscriptionRepository,
	userRepository user.UserRepository,
	recipeRepository recipe.RecipeRepository,
) SubscriptionService {
	return &subscriptionService{
		subscriptionRepository: subscriptionRepository,
		userRepository:         userRepository,
		recipeRepository:       recipeRepository,
	}
}

func (s *subscriptionService) Subscribe(ctx context.Context, userID, authorID string, recipesLimit int) (domain.SubscriptionResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.SubscriptionResponse{}, domain.ErrParseUUID
	}

	// the url parameter may carry a non-canonical uuid rendition, so the
	// self-subscribe guard compares parsed values, not strings
	authorUUID, err := uuid.Parse(authorID)
	if err != nil {
		return domain.SubscriptionResponse{}, domain.ErrUserNotFound
	}
	if authorUUID == userUUID {
		return domain.SubscriptionResponse{}, domain.ErrSelfSubscription
	}

	author, err := s.userRepository.GetUserByID(ctx, authorUUID.String())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.SubscriptionResponse{}, domain.ErrUserNotFound
		}
		return domain.SubscriptionResponse{}, err
	}

	subscription := &entities.Subscription{
		ID:        uuid.New(),
		UserID:    userUUID,
		AuthorID:  author.ID,
		CreatedAt: time.Now(),
	}

	// the unique index resolves concurrent duplicate adds, no pre-check
	if err := s.subscriptionRepository.CreateSubscription(ctx, subscription); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.SubscriptionResponse{}, domain.ErrAlreadySubscribed
		}
		return domain.SubscriptionResponse{}, err
	}

	return s.buildResponse(ctx, author, recipesLimit)
}

func (s *subscriptionService) Unsubscribe(ctx context.Context, userID, authorID string) error {
	authorUUID, err := uuid.Parse(authorID)
	if err != nil {
		return domain.ErrNotSubscribed
	}

	rows, err := s.subscriptionRepository.DeleteSubscription(ctx, userID, authorUUID.String())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotSubscribed
	}
	return nil
}

func (s *subscriptionService) GetSubscriptions(ctx context.Context, userID string, recipesLimit, page, limit int) ([]domain.SubscriptionResponse, int64, error) {
	authors, count, err := s.subscriptionRepository.GetSubscribedAuthors(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, err
	}

	response := make([]domain.SubscriptionResponse, 0, len(authors))
	for _, author := range authors {
		item, err := s.buildResponse(ctx, author, recipesLimit)
		if err != nil {
			return nil, 0, err
		}
		response = append(response, item)
	}
	return response, count, nil
}

func (s *subscriptionService) buildResponse(ctx context.Context, author *entities.User, recipesLimit int) (domain.SubscriptionResponse, error) {
	var recipes []*entities.Recipe
	if recipesLimit != 0 {
		var err error
		recipes, err = s.recipeRepository.GetRecipesByAuthor(ctx, author.ID.String(), recipesLimit)
		if err != nil {
			return domain.SubscriptionResponse{}, err
		}
	}

	recipesCount, err := s.recipeRepository.CountRecipesByAuthor(ctx, author.ID.String())
	if err != nil {
		return domain.SubscriptionResponse{}, err
	}

	summaries := make([]domain.RecipeSummary, 0, len(recipes))
	for _, r := range recipes {
		summaries = append(summaries, recipe.ToRecipeSummary(r))
	}

	return domain.SubscriptionResponse{
		ID:           author.ID.String(),
		Email:        author.Email,
		Username:     author.Username,
		FirstName:    author.FirstName,
		LastName:     author.LastName,
		IsSubscribed: true,
		Recipes:      summaries,
		RecipesCount: recipesCount,
	}, nil
}
