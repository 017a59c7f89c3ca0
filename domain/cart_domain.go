package domain

import "errors"

var (
	MessageSuccessAddToCart      = "recipe added to shopping cart"
	MessageSuccessRemoveFromCart = "recipe removed from shopping cart"
	MessageSuccessDownloadList   = "success download shopping list"

	MessageFailedAddToCart      = "failed to add recipe to shopping cart"
	MessageFailedRemoveFromCart = "failed to remove recipe from shopping cart"
	MessageFailedDownloadList   = "failed to download shopping list"

	ErrAlreadyInCart = errors.New("recipe already in shopping cart")
	ErrNotInCart     = errors.New("recipe is not in shopping cart")
)

type (
	// ShoppingListItem is one aggregated line of the exported list:
	// amounts summed across every recipe in the cart, grouped by
	// (name, measurement unit).
	ShoppingListItem struct {
		Name            string `json:"name"`
		MeasurementUnit string `json:"measurement_unit"`
		Total           int    `json:"total"`
	}
)
