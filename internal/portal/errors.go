package portal

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("invalid portal configuration")
	ErrInvalidCredentials = errors.New("invalid login or password")
	ErrLoginTaken         = errors.New("login already in use")
	ErrEmailTaken         = errors.New("email already in use")
	ErrProfileNameTaken   = errors.New("profile name already in use")
	ErrSelfDelete         = errors.New("users cannot delete themselves")
	ErrWeakPassword       = errors.New("password does not meet requirements")
	ErrAdminMissing       = errors.New("admin user does not exist")
	ErrMissingPrereqs     = errors.New("required records are missing")
	ErrAlreadyInitialized = errors.New("database already holds users; use --force to recreate it")
	ErrUnknownFixture     = errors.New("unknown fixture set")
)

// FieldErrorKind classifies a rejected form field.
type FieldErrorKind int

const (
	FieldRequired FieldErrorKind = iota
	FieldInvalid
	FieldTooLong
)

// FieldError reports a form field that failed validation. Field is the
// form field name shown to the user.
type FieldError struct {
	Field string
	Kind  FieldErrorKind
	Max   int
}

func (e *FieldError) Error() string {
	switch e.Kind {
	case FieldRequired:
		return fmt.Sprintf("field %s is required", e.Field)
	case FieldTooLong:
		return fmt.Sprintf("field %s exceeds %d characters", e.Field, e.Max)
	default:
		return fmt.Sprintf("field %s has an invalid value", e.Field)
	}
}

// Message is the flash text for the error.
func (e *FieldError) Message() string {
	switch e.Kind {
	case FieldRequired:
		return fmt.Sprintf("O campo %s é obrigatório.", e.Field)
	case FieldTooLong:
		return fmt.Sprintf("O campo %s excede o tamanho máximo de %d caracteres.", e.Field, e.Max)
	default:
		return fmt.Sprintf("Valor inválido para o campo %s.", e.Field)
	}
}

func required(field string) error { return &FieldError{Field: field, Kind: FieldRequired} }
func invalid(field string) error  { return &FieldError{Field: field, Kind: FieldInvalid} }
