package domain

import (
	"dm-chat/errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks a send intent before anything reaches the store.
// Whitespace-only bodies are rejected like empty ones.
func (c SendMessageCommand) Validate(maxContentLength int) error {
	if strings.TrimSpace(string(c.SenderID)) == "" {
		return errors.ErrMissingSender
	}
	if strings.TrimSpace(string(c.ReceiverID)) == "" {
		return errors.ErrMissingReceiver
	}
	if strings.TrimSpace(c.Body) == "" {
		return errors.ErrEmptyBody
	}
	if maxContentLength > 0 && utf8.RuneCountInString(c.Body) > maxContentLength {
		return fmt.Errorf("%w: %d characters allowed", errors.ErrBodyTooLong, maxContentLength)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

func (c FetchConversationCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

func (c UpsertUserCommand) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}
