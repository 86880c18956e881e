package auth

import "fmt"

// Permission strings granted by the identity provider
const (
	PermissionGetDrinksDetail = "get:drinks-detail"
	PermissionPostDrinks      = "post:drinks"
	PermissionPatchDrinks     = "patch:drinks"
	PermissionDeleteDrinks    = "delete:drinks"
)

// CheckPermission succeeds only when claims carry a permissions list containing permission
func CheckPermission(permission string, claims *Claims) error {
	if !claims.HasPermissionsClaim() {
		return NewAuthError(ErrCodePermissionDenied, "Permissions not included in JWT.", nil)
	}

	if !claims.HasPermission(permission) {
		return NewAuthError(ErrCodePermissionDenied, "Permission not found.",
			fmt.Errorf("missing permission %q", permission))
	}

	return nil
}
