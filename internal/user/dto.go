package user

import (
	"github.com/frahmantamala/access-management/internal/core/common/validation"
)

const (
	minPasswordLength = 8
	maxNameLength     = 255
)

// CreateUserDTO carries a create-user request from the CLI or HTTP surface.
type CreateUserDTO struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (d CreateUserDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("name", d.Name).Required().MaxLength(maxNameLength)
	v.Field("email", d.Email).Required().Email().MaxLength(maxNameLength)
	v.Field("password", d.Password).Required().MinLength(minPasswordLength)
	v.Field("password_confirmation", d.PasswordConfirmation).
		Equals(d.Password, "password confirmation does not match")
	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// SetBannedDTO toggles the ban flag on an account.
type SetBannedDTO struct {
	Banned bool `json:"banned"`
}
