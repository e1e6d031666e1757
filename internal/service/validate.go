package service

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/Skotchmaster/tasktracker/internal/models"
)

const (
	MaxUsernameLen = 20
	MaxEmailLen    = 120
)

// notBlank rejects strings made only of whitespace. Nil pointers pass.
var notBlank = validation.By(func(value interface{}) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	if s, ok := v.(string); ok && s != "" && strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
})

// checkRules runs v.Validate and tags failures as validation errors.
func checkRules(v validation.Validatable) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required, notBlank, validation.Length(1, MaxUsernameLen)),
		validation.Field(&in.Email, validation.Required, notBlank, validation.Length(3, MaxEmailLen), is.Email),
		validation.Field(&in.Password, validation.Required),
		validation.Field(&in.Role, validation.In(models.RoleAdmin, models.RoleUser)),
	)
}

func (in UpdateUserInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.NilOrNotEmpty, notBlank, validation.Length(1, MaxUsernameLen)),
		validation.Field(&in.Email, validation.NilOrNotEmpty, notBlank, validation.Length(3, MaxEmailLen), is.Email),
		validation.Field(&in.Role, validation.NilOrNotEmpty, validation.In(models.RoleAdmin, models.RoleUser)),
		validation.Field(&in.Password, validation.NilOrNotEmpty),
	)
}

func (in UpdateTaskInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.NilOrNotEmpty, notBlank, validation.Length(1, MaxTitleLen)),
	)
}
