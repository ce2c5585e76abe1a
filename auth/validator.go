package auth

import (
	"dm-chat/errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Same rules as user ids everywhere else: ':' is the key separator of the store.
const userIDRules = "required,max=64,excludesall=:"

func validateIdentity(userID string) error {
	if err := validate.Var(userID, userIDRules); err != nil {
		return fmt.Errorf("%w: invalid identity: %v", errors.ErrUnauthenticated, err)
	}
	return nil
}
