package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/eas-pay/eas_wallet/internal/apiclient"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// FieldError is one inline validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"type"`
}

// Error collects field failures. It is shown inline and never sent anywhere.
type Error struct {
	Fields []FieldError `json:"details"`
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return strings.Join(parts, "; ")
}

// IsValidationError reports whether err came from this package.
func IsValidationError(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

func fromValidator(err error, field string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{}
	for _, fe := range verrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		out.Fields = append(out.Fields, FieldError{Field: name, Message: message(fe), Tag: fe.Tag()})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "len":
		return "Must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "Must contain digits only"
	case "min":
		return "Value is too short"
	case "max":
		return "Value is too long"
	case "bic":
		return "Invalid BIC"
	case "alphanum":
		return "Must contain letters and digits only"
	case "oneof":
		return "Must be one of " + fe.Param()
	default:
		return "Invalid value"
	}
}

// Email checks the format of an email address.
func Email(email string) error {
	return fromValidator(validate.Var(strings.TrimSpace(email), "required,email"), "email")
}

// OTPCode checks a six digit verification code.
func OTPCode(code string) error {
	return fromValidator(validate.Var(strings.TrimSpace(code), "required,len=6,numeric"), "otp_code")
}

// WalletAddress checks that a destination address is present and plausibly
// formatted. Chain specific checks are left to the server.
func WalletAddress(address string) error {
	return fromValidator(validate.Var(strings.TrimSpace(address), "required,alphanum,min=26,max=128"), "address")
}

// FullName checks the legal name submitted for KYC.
func FullName(name string) error {
	return fromValidator(validate.Var(strings.TrimSpace(name), "required,max=128"), "full_name")
}

// FiatCurrency checks a deposit account currency.
func FiatCurrency(currency string) error {
	return fromValidator(validate.Var(strings.ToLower(strings.TrimSpace(currency)), "required,oneof=usd eur"), "currency")
}

// Label checks a user supplied account label.
func Label(label string) error {
	return fromValidator(validate.Var(label, "max=64"), "label")
}

type achDetails struct {
	AccountOwnerName string `json:"account_owner_name" validate:"required,max=128"`
	RoutingNumber    string `json:"routing_number" validate:"required,numeric,len=9"`
	AccountNumber    string `json:"account_number" validate:"required,numeric,min=4,max=17"`
}

type sepaDetails struct {
	AccountOwnerName string `json:"account_owner_name" validate:"required,max=128"`
	IBAN             string `json:"iban" validate:"required,alphanum,min=15,max=34"`
	BIC              string `json:"bic" validate:"required,bic"`
}

// BankDetails checks the fields required by rail.
func BankDetails(rail string, d apiclient.BankDetails) error {
	switch rail {
	case apiclient.RailACH:
		return fromValidator(validate.Struct(achDetails{
			AccountOwnerName: strings.TrimSpace(d.AccountOwnerName),
			RoutingNumber:    strings.TrimSpace(d.RoutingNumber),
			AccountNumber:    strings.TrimSpace(d.AccountNumber),
		}), "")
	case apiclient.RailSEPA:
		return fromValidator(validate.Struct(sepaDetails{
			AccountOwnerName: strings.TrimSpace(d.AccountOwnerName),
			IBAN:             strings.ToUpper(strings.ReplaceAll(d.IBAN, " ", "")),
			BIC:              strings.ToUpper(strings.TrimSpace(d.BIC)),
		}), "")
	default:
		return &Error{Fields: []FieldError{{Field: "rail", Message: "Unsupported bank rail", Tag: "oneof"}}}
	}
}
