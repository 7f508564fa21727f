package model

import (
	"time"

	"github.com/google/uuid"
)

// Plan values and the user quota each one grants.
const (
	PlanIndividual = "individual"
	PlanBusiness   = "business"
	PlanEnterprise = "enterprise"
)

// MaxUsuariosPorPlan is the default quota applied when a tenant is created.
var MaxUsuariosPorPlan = map[string]int{
	PlanIndividual: 1,
	PlanBusiness:   5,
	PlanEnterprise: 50,
}

// Tenant is a delivery business. Every other table is scoped by TenantID.
type Tenant struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre           string    `gorm:"not null"`
	Plan             string    `gorm:"type:varchar(20);not null;default:'individual'"`
	MaxUsuarios      int       `gorm:"not null;default:1"`
	UsuariosActuales int       `gorm:"not null;default:0"`
	Activo           bool      `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PuedeAgregarUsuario reports whether the plan quota has room for one more user.
func (t *Tenant) PuedeAgregarUsuario() bool {
	return t.Activo && t.UsuariosActuales < t.MaxUsuarios
}
