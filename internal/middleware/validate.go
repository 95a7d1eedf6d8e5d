package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/forgo/bastion/internal/audit"
	"github.com/forgo/bastion/internal/model"
)

// NewValidator returns a validator that reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return fld.Name
		}
		return name
	})
	return v
}

// Validate decodes the JSON body into T and checks its validate tags. Unknown
// fields are rejected. Handlers read the result with ValidatedBody.
func Validate[T any](v *validator.Validate, events audit.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body := new(T)

			dec := json.NewDecoder(r.Body)
			dec.DisallowUnknownFields()
			if err := dec.Decode(body); err != nil {
				reject(w, r, events, &model.Denial{Kind: model.DenialValidation, Reason: "decode body", Err: err})
				return
			}

			if err := v.Struct(body); err != nil {
				var verrs validator.ValidationErrors
				if !errors.As(err, &verrs) {
					reject(w, r, events, &model.Denial{Kind: model.DenialInternal, Reason: "validator misuse", Err: err})
					return
				}
				reject(w, r, events, &model.Denial{
					Kind:   model.DenialValidation,
					Reason: "schema validation failed",
					Fields: fieldErrors(verrs),
					Err:    err,
				})
				return
			}

			ctx := context.WithValue(r.Context(), validatedKey, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ValidatedBody returns the body decoded by Validate[T].
func ValidatedBody[T any](ctx context.Context) (*T, bool) {
	body, ok := ctx.Value(validatedKey).(*T)
	return body, ok
}

func fieldErrors(verrs validator.ValidationErrors) []model.FieldError {
	out := make([]model.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, model.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "url", "http_url":
		return "must be a valid URL"
	default:
		return "is invalid"
	}
}
