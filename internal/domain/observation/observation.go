// Package observation stores photometric observations of objects and the data
// files attached to them.
package observation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is a single measurement of an object taken at a facility.
type Observation struct {
	ID         int64            `json:"id"`
	ObjectName string           `json:"object_name" validate:"required,max=256"`
	FacilityID int64            `json:"facility_id" validate:"required,gt=0"`
	Time       time.Time        `json:"time" validate:"required"`
	Value      decimal.Decimal  `json:"value"`
	Error      *decimal.Decimal `json:"error"`
	FileType   string           `json:"file_type,omitempty" validate:"omitempty,oneof=fits fits.gz png jpeg"`
	FileSize   int64            `json:"file_size,omitempty"`
	Created    time.Time        `json:"created"`
}

// File is the raw data attached to an observation.
type File struct {
	Type string
	Data []byte
}

// FileTypes lists the accepted file types.
var FileTypes = []string{"fits", "fits.gz", "png", "jpeg"}

// Repository persists observations. Lookups that find nothing fail with
// apierr.RecordNotFound; referencing an unknown facility fails with
// apierr.ConstraintViolation.
type Repository interface {
	ObservationByID(ctx context.Context, id int64) (*Observation, error)
	ObservationsOf(ctx context.Context, objectName string) ([]Observation, error)
	CreateObservation(ctx context.Context, o *Observation) error
	File(ctx context.Context, id int64) (*File, error)
	SaveFile(ctx context.Context, id int64, f *File) error
}
