package service

import (
	"errors"
	"fmt"

	"repartos/internal/liquidacion"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ValidationError reports invalid or inconsistent input. Nothing was persisted.
type ValidationError struct {
	Campo   string
	Mensaje string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Campo, e.Mensaje) }

// NotFoundError reports a referenced entity that does not exist for the tenant.
type NotFoundError struct {
	Entidad string
	ID      string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s no encontrado", e.Entidad, e.ID) }

// PersistenceError wraps a storage failure. The transaction was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// ErrConflictoConcurrencia is returned when the client ledger changed between
// read and write. The caller may retry the whole operation.
var ErrConflictoConcurrencia = errors.New("el saldo del cliente fue modificado concurrentemente")

// ErrCredencialesInvalidas is returned by Login for unknown users or bad passwords.
var ErrCredencialesInvalidas = errors.New("credenciales invalidas")

// ErrTenantInactivo is returned when the user's tenant is missing or disabled.
var ErrTenantInactivo = errors.New("la cuenta de la empresa esta inactiva")

func notFoundOr(err error, entidad string, id uuid.UUID, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &NotFoundError{Entidad: entidad, ID: id.String()}
	}
	return &PersistenceError{Op: op, Err: err}
}

// validationFrom converts a liquidacion field error into a ValidationError.
func validationFrom(err error) error {
	var ce *liquidacion.CampoError
	if errors.As(err, &ce) {
		return &ValidationError{Campo: ce.Campo, Mensaje: ce.Mensaje}
	}
	return err
}

// passThrough returns domain errors untouched and wraps anything else.
func passThrough(err error, op string) error {
	var ve *ValidationError
	var nf *NotFoundError
	var pe *PersistenceError
	switch {
	case errors.As(err, &ve), errors.As(err, &nf), errors.As(err, &pe),
		errors.Is(err, ErrConflictoConcurrencia):
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
