package fsstore

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ValidationError reports a schema violation detected while decoding or
// round-trip checking a durable record. Violations are never silently
// coerced; the offending field and constraint are always named.
type ValidationError struct {
	// Path is the file the record was read from or destined for, when known.
	Path string

	// Field is the struct field that violated its constraint.
	Field string

	// Constraint is the validation rule that failed (e.g. "required", "oneof").
	Constraint string

	// Err is the underlying decode or validation error.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Field != "" {
		msg = fmt.Sprintf("field %q violates constraint %q", e.Field, e.Constraint)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.Path, msg, e.unwrapMessage())
	}
	return fmt.Sprintf("%s: %v", msg, e.unwrapMessage())
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) unwrapMessage() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// IsValidationError reports whether err carries a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Codec serializes typed records to YAML and rejects malformed or
// schema-violating data before it is trusted. Schemas are expressed as
// `validate` struct tags checked with go-playground/validator.
type Codec struct {
	validate *validator.Validate
}

// NewCodec creates a codec with a fresh validator instance.
func NewCodec() *Codec {
	return &Codec{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Encode serializes v to YAML after validating it against its schema.
func (c *Codec) Encode(v any) ([]byte, error) {
	if err := c.check("", v); err != nil {
		return nil, err
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", v, err)
	}
	return data, nil
}

// Decode parses YAML into out (a pointer to struct) and validates the result.
// Unknown fields are rejected so truncated or foreign files cannot pass as
// valid records.
func (c *Codec) Decode(data []byte, out any) error {
	return c.decode("", data, out)
}

func (c *Codec) decode(path string, data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return &ValidationError{Path: path, Err: fmt.Errorf("decode %T: %w", out, err)}
	}
	return c.check(path, out)
}

// Save validates v, encodes it, round-trips the encoding through Decode into
// a fresh value as a sanity check, and only then commits the bytes to path
// via WriteAtomic. v must be a non-nil pointer to struct.
func (c *Codec) Save(path string, v any) error {
	data, err := c.Encode(v)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Path == "" {
			ve.Path = path
		}
		return err
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("save %s: value must be a non-nil pointer, got %T", path, v)
	}

	roundTrip := func(encoded []byte) error {
		fresh := reflect.New(rv.Type().Elem()).Interface()
		return c.decode(path, encoded, fresh)
	}

	return WriteAtomic(path, data, roundTrip)
}

// Load reads path and decodes it into out, validating against the schema.
func (c *Codec) Load(path string, out any) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}
	return c.decode(path, data, out)
}

// check runs struct validation and maps the first violation into a
// ValidationError naming the field and constraint.
func (c *Codec) check(path string, v any) error {
	err := c.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Path:       path,
			Field:      fe.Namespace(),
			Constraint: fe.Tag(),
			Err:        err,
		}
	}
	return &ValidationError{Path: path, Err: err}
}
