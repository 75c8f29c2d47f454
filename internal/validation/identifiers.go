// Package validation checks identifiers that cross the sync boundary.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/iudanet/booksync/internal/models"
)

// TenantIDPattern определяет допустимый формат tenant_id
// Латинские буквы, цифры, дефис и нижнее подчеркивание, 1-64 символа
var TenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

const (
	// MaxLocalIDLen максимальная длина локального идентификатора записи
	MaxLocalIDLen = 128
)

// ValidateTenantID проверяет формат идентификатора арендатора
func ValidateTenantID(tenantID string) error {
	if tenantID == "" {
		return fmt.Errorf("tenant id cannot be empty")
	}
	if !TenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("tenant id %q can only contain letters, numbers, '-' and '_' (max 64)", tenantID)
	}
	return nil
}

// ValidateEntityType checks that name is one of the supported business entity types.
func ValidateEntityType(name string) error {
	if name == "" {
		return fmt.Errorf("entity type cannot be empty")
	}
	if !slices.Contains(models.SupportedEntityTypes, name) {
		return fmt.Errorf("unsupported entity type %q", name)
	}
	return nil
}

// ValidateLocalID проверяет идентификатор записи на реплике
func ValidateLocalID(id string) error {
	if id == "" {
		return fmt.Errorf("local id cannot be empty")
	}
	if len(id) > MaxLocalIDLen {
		return fmt.Errorf("local id must not exceed %d bytes", MaxLocalIDLen)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return fmt.Errorf("local id %q contains whitespace or control characters", id)
		}
	}
	return nil
}

// New returns a validator with the "tenantid" and "entitytype" tags registered.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Регистрация не может завершиться ошибкой для непустых имен тегов
	_ = v.RegisterValidation("tenantid", func(fl validator.FieldLevel) bool {
		return ValidateTenantID(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("entitytype", func(fl validator.FieldLevel) bool {
		return ValidateEntityType(fl.Field().String()) == nil
	})
	return v
}
