package policy

import (
	"Foodgram-Backend/domain"
	"Foodgram-Backend/entities"
)

// CanModifyRecipe allows unsafe methods on a recipe for its author and for
// admin identities only. Reads are open and never go through here.
func CanModifyRecipe(userID string, role string, recipe *entities.Recipe) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return recipe.AuthorID.String() == userID
}
