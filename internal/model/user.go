package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role identifies which side of the origination workflow an actor acts for.
type Role string

const (
	RoleClient     Role = "client"
	RoleKam        Role = "kam"
	RoleCreditTeam Role = "credit_team"
	RoleNbfc       Role = "nbfc"
	RoleAdmin      Role = "admin"
)

// ValidRole reports whether r is one of the known workflow roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleClient, RoleKam, RoleCreditTeam, RoleNbfc, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role carries credit-team authority.
// admin inherits every credit_team authorization.
func (r Role) Elevated() bool {
	return r == RoleCreditTeam || r == RoleAdmin
}

// CanResolveAnyQuery reports whether the role may resolve threads it did not
// author. kam and the elevated roles qualify.
func (r Role) CanResolveAnyQuery() bool {
	return r == RoleKam || r.Elevated()
}

// User represents a login identity. Depending on Role it is linked to the
// client account or lending partner it acts on behalf of.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Username  string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone     string         `gorm:"type:varchar(20)" json:"phone"`
	Password  string         `gorm:"type:varchar(255);not null" json:"-"` // Omit password from JSON requests/responses
	Role      Role           `gorm:"type:varchar(20);not null;index" json:"role"`
	ClientID  *uuid.UUID     `gorm:"type:uuid;index" json:"client_id"` // Set for client users
	NbfcID    *uuid.UUID     `gorm:"type:uuid;index" json:"nbfc_id"`   // Set for nbfc users
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

// Actor is the resolved caller of an operation: who they are, which role they
// hold, and which entity they act on behalf of. Resolved once by the auth
// middleware and passed into every service call.
type Actor struct {
	UserID   uuid.UUID  `json:"user_id"`
	Role     Role       `json:"role"`
	ClientID *uuid.UUID `json:"client_id,omitempty"`
	KamID    *uuid.UUID `json:"kam_id,omitempty"`
	NbfcID   *uuid.UUID `json:"nbfc_id,omitempty"`
}

// ActsForClient reports whether the actor is the client user owning clientID.
func (a Actor) ActsForClient(clientID uuid.UUID) bool {
	return a.Role == RoleClient && a.ClientID != nil && *a.ClientID == clientID
}

// ActsForNbfc reports whether the actor belongs to the given lending partner.
func (a Actor) ActsForNbfc(nbfcID uuid.UUID) bool {
	return a.Role == RoleNbfc && a.NbfcID != nil && *a.NbfcID == nbfcID
}
