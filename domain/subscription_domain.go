package domain

import "errors"

var (
	MessageSuccessSubscribe        = "subscribed successfully"
	MessageSuccessUnsubscribe      = "unsubscribed successfully"
	MessageSuccessGetSubscriptions = "success get subscriptions"

	MessageFailedSubscribe        = "failed to subscribe"
	MessageFailedUnsubscribe      = "failed to unsubscribe"
	MessageFailedGetSubscriptions = "failed to get subscriptions"

	ErrSelfSubscription  = errors.New("cannot subscribe to yourself")
	ErrAlreadySubscribed = errors.New("subscription already exists")
	ErrNotSubscribed     = errors.New("subscription does not exist")
)

type (
	// SubscriptionResponse is an author profile enriched with up to
	// recipes_limit condensed recipes and the author's total recipe count.
	SubscriptionResponse struct {
		ID           string          `json:"id"`
		Email        string          `json:"email"`
		Username     string          `json:"username"`
		FirstName    string          `json:"first_name"`
		LastName     string          `json:"last_name"`
		IsSubscribed bool            `json:"is_subscribed"`
		Recipes      []RecipeSummary `json:"recipes"`
		RecipesCount int64           `json:"recipes_count"`
	}
)
