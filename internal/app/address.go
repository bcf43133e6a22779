package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chefkeenan/Lume/internal/domain"
)

var addressValidator = newAddressValidator()

func newAddressValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their wire names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

var requiredAddressFields = []string{"address_line1", "city", "province", "postal_code", "country"}

// normalizeAddress trims every field and checks the required ones. Semantic
// checks (does the postal code exist) belong to the address collaborator.
func normalizeAddress(a *domain.Address) (domain.Address, error) {
	if a == nil {
		return domain.Address{}, domain.MissingFieldsError(requiredAddressFields)
	}
	out := domain.Address{
		ReceiverName:  strings.TrimSpace(a.ReceiverName),
		ReceiverPhone: strings.TrimSpace(a.ReceiverPhone),
		Line1:         strings.TrimSpace(a.Line1),
		Line2:         strings.TrimSpace(a.Line2),
		City:          strings.TrimSpace(a.City),
		Province:      strings.TrimSpace(a.Province),
		PostalCode:    strings.TrimSpace(a.PostalCode),
		Country:       strings.TrimSpace(a.Country),
	}

	err := addressValidator.Struct(out)
	if err == nil {
		return out, nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return domain.Address{}, err
	}

	var missing []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		}
	}
	if len(missing) > 0 {
		return domain.Address{}, domain.MissingFieldsError(missing)
	}
	fe := fieldErrs[0]
	return domain.Address{}, domain.NewValidationError(fe.Field(), "must be at most "+fe.Param()+" characters")
}
