// Package contact turns a contact-form submission into one outbound email:
// field checks, then bot verification, then mail dispatch, strictly in that
// order.
package contact

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/portfolio-site/contactrelay/internal/outcome"
)

// Request is the body of POST /contact.
type Request struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message" validate:"required"`
	Token   string `json:"token,omitempty"`

	// TurnstileToken is the field name older clients send the token under.
	TurnstileToken string `json:"turnstileToken,omitempty"`
}

// Normalized trims every field, folds TurnstileToken into Token and
// normalizes the phone number.
func (r Request) Normalized() Request {
	token := strings.TrimSpace(r.Token)
	if token == "" {
		token = strings.TrimSpace(r.TurnstileToken)
	}
	return Request{
		Name:    strings.TrimSpace(r.Name),
		Email:   strings.TrimSpace(r.Email),
		Phone:   NormalizePhone(r.Phone),
		Message: strings.TrimSpace(r.Message),
		Token:   token,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// FieldError lists the request fields that failed validation.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "invalid fields: " + strings.Join(e.Fields, ", ")
}

// Validate checks the required fields of an already normalized request.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return outcome.New(outcome.KindValidation, "contact.validate", err)
	}
	fe := &FieldError{}
	for _, v := range verrs {
		fe.Fields = append(fe.Fields, strings.ToLower(v.Field()))
	}
	return outcome.New(outcome.KindValidation, "contact.validate", fe)
}
