package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/civicworks/fixline/internal/reports/model"
)

// User represents an authenticated account holder. Role determines which
// report operations the account may perform; Department is set only for
// field heads and scopes their authority to one department's reports.
type User struct {
	ID           uuid.UUID        `json:"id"         db:"id"`
	Email        string           `json:"email"      db:"email"`
	PasswordHash string           `json:"-"          db:"password_hash"`
	Name         string           `json:"name"       db:"name"`
	Role         model.Role       `json:"role"       db:"role"`
	Department   model.Department `json:"department,omitempty" db:"department"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
}

// Actor converts the account into the actor identity consumed by the
// report lifecycle engine.
func (u *User) Actor() model.Actor {
	return model.Actor{
		ID:         u.ID,
		Name:       u.Name,
		Role:       u.Role,
		Department: u.Department,
	}
}

// FieldHeadSummary is the directory view of a field head, returned to
// maintainers picking an assignment target.
type FieldHeadSummary struct {
	ID         uuid.UUID        `json:"id"`
	Name       string           `json:"name"`
	Email      string           `json:"email"`
	Department model.Department `json:"department"`
}
