// Package profile manages user and facility profiles and the association
// between them.
package profile

import (
	"context"

	"github.com/shopspring/decimal"
)

// User is a registered person. Data holds free-form attributes.
type User struct {
	ID        int64          `json:"id"`
	FirstName string         `json:"first_name" validate:"required,max=256"`
	LastName  string         `json:"last_name" validate:"required,max=256"`
	Email     string         `json:"email" validate:"required,email"`
	Alias     string         `json:"alias" validate:"required,max=256,excludesall=/"`
	Data      map[string]any `json:"data"`
}

// Facility is an observing site with its location and instrument limits.
type Facility struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name" validate:"required,max=256,excludesall=/"`
	Latitude          decimal.Decimal `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude         decimal.Decimal `json:"longitude" validate:"gte=-180,lte=360"`
	Elevation         decimal.Decimal `json:"elevation" validate:"gte=-500"`
	LimitingMagnitude decimal.Decimal `json:"limiting_magnitude" validate:"gte=-10,lte=40"`
	Data              map[string]any  `json:"data"`
}

// Repository persists users, facilities and the mapping between them.
// Lookups that find nothing fail with apierr.RecordNotFound; deleting a
// record that is still referenced fails with apierr.ConstraintViolation.
type Repository interface {
	UserByID(ctx context.Context, id int64) (*User, error)
	UserByAlias(ctx context.Context, alias string) (*User, error)
	// SaveUser inserts u, or replaces the existing row when u.ID is set.
	SaveUser(ctx context.Context, u *User) error
	DeleteUser(ctx context.Context, id int64) error

	FacilityByID(ctx context.Context, id int64) (*Facility, error)
	FacilityByName(ctx context.Context, name string) (*Facility, error)
	SaveFacility(ctx context.Context, f *Facility) error
	DeleteFacility(ctx context.Context, id int64) error

	FacilitiesOf(ctx context.Context, userID int64) ([]Facility, error)
	UsersOf(ctx context.Context, facilityID int64) ([]User, error)
	Associated(ctx context.Context, userID, facilityID int64) (bool, error)
	Associate(ctx context.Context, userID, facilityID int64) error
	Dissociate(ctx context.Context, userID, facilityID int64) error
}
