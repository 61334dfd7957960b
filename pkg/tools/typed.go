package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	mcperrors "github.com/voxmill/transcript-mcp/pkg/errors"
	"github.com/voxmill/transcript-mcp/pkg/protocol"
)

// validate is shared by every typed tool. Violations report the json field
// name so they match the wire shape the client sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterTyped registers a tool whose handler receives a decoded argument
// struct. Arguments are strict-decoded (unknown fields rejected) and checked
// against the struct's validate tags before the handler runs, so the handler
// can trust its input. Binding the argument type here makes an argument
// shape mismatch a compile error rather than a runtime surprise.
func RegisterTyped[A any](r *Registry, tool protocol.Tool, handler func(ctx context.Context, args A) (interface{}, error)) error {
	return r.Register(tool, func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var args A
		if err := decodeArguments(tool.Name, raw, &args); err != nil {
			return nil, err
		}
		if err := validateArguments(tool.Name, args); err != nil {
			return nil, err
		}
		return handler(ctx, args)
	})
}

// decodeArguments strict-decodes raw tool arguments. An absent or null
// argument object decodes to the zero value so tools without required
// fields can be called bare.
func decodeArguments(tool string, raw json.RawMessage, target interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return mcperrors.InvalidArguments(tool, []mcperrors.FieldViolation{decodeViolation(err)})
	}
	return nil
}

// decodeViolation maps a json decode error onto the offending field where
// the error exposes one.
func decodeViolation(err error) mcperrors.FieldViolation {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			field = "arguments"
		}
		return mcperrors.FieldViolation{
			Field:      field,
			Constraint: fmt.Sprintf("must be %s", typeErr.Type),
		}
	}

	msg := err.Error()
	if name, ok := strings.CutPrefix(msg, "json: unknown field "); ok {
		return mcperrors.FieldViolation{
			Field:      strings.Trim(name, `"`),
			Constraint: "unexpected field",
		}
	}

	return mcperrors.FieldViolation{Field: "arguments", Constraint: msg}
}

func validateArguments(tool string, args interface{}) error {
	err := validate.Struct(args)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return mcperrors.InvalidArguments(tool, []mcperrors.FieldViolation{
			{Field: "arguments", Constraint: err.Error()},
		})
	}

	violations := make([]mcperrors.FieldViolation, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, mcperrors.FieldViolation{
			Field:      fe.Field(),
			Constraint: constraintText(fe),
		})
	}
	return mcperrors.InvalidArguments(tool, violations)
}

// constraintText renders a validator tag as a short readable constraint.
func constraintText(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Sprintf("failed constraint %s=%s", fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("failed constraint %s", fe.Tag())
	}
}
