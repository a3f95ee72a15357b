package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dukerupert/comptoir/internal/domain"
)

// maxJSONBody bounds request bodies read by DecodeJSON.
const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON reads the request body into dst and validates its struct tags.
// Failures are EINVALID domain errors, field failures a ValidationError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	const op = "handler.DecodeJSON"

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid(op, "Request body must not be empty")
		case errors.As(err, &maxErr):
			return domain.Errorf(domain.ETOOLARGE, op, "Request body must not exceed %d bytes", maxErr.Limit)
		case errors.As(err, &syntaxErr):
			return domain.Invalid(op, fmt.Sprintf("Malformed JSON at offset %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return domain.NewValidationError(op, typeErr.Field, "has the wrong type")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return domain.Invalid(op, "Unknown field "+strings.TrimPrefix(err.Error(), "json: unknown field "))
		default:
			return domain.Invalid(op, "Malformed JSON")
		}
	}
	return Validate(dst)
}

// Validate checks v's validate tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Invalid("handler.Validate", err.Error())
	}
	var out error
	for _, fe := range verrs {
		field := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(field) == 2 {
			name = field[1]
		}
		out = domain.AddFieldError(out, name, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// PathUUID parses the path value name as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.PathValue(name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("handler.PathUUID", name, "must be a valid UUID")
	}
	return id, nil
}
