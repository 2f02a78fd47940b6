package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/refitt/refitt-api/internal/domain/observation"
)

var _ observation.Repository = (*ObservationRepository)(nil)

// ObservationRepository stores observations and their data files.
type ObservationRepository struct {
	pool *pgxpool.Pool
}

// NewObservationRepository returns an ObservationRepository that uses the
// given pool.
func NewObservationRepository(pool *pgxpool.Pool) *ObservationRepository {
	return &ObservationRepository{pool: pool}
}

const selectObservation = `
	SELECT id, object_name, facility_id, time, value, error,
	       COALESCE(file_type, ''), COALESCE(octet_length(file), 0), created
	FROM observation`

func scanObservation(row pgx.Row) (*observation.Observation, error) {
	var (
		o      observation.Observation
		errVal decimal.NullDecimal
	)
	err := row.Scan(&o.ID, &o.ObjectName, &o.FacilityID, &o.Time, &o.Value, &errVal,
		&o.FileType, &o.FileSize, &o.Created)
	if err != nil {
		return nil, err
	}
	if errVal.Valid {
		o.Error = &errVal.Decimal
	}
	return &o, nil
}

func (r *ObservationRepository) ObservationByID(ctx context.Context, id int64) (*observation.Observation, error) {
	o, err := scanObservation(r.pool.QueryRow(ctx, selectObservation+` WHERE id = $1`, id))
	if err != nil {
		return nil, lookupErr(err, "observation", "id", id)
	}
	return o, nil
}

func (r *ObservationRepository) ObservationsOf(ctx context.Context, objectName string) ([]observation.Observation, error) {
	rows, err := r.pool.Query(ctx, selectObservation+` WHERE object_name = $1 ORDER BY time, id`, objectName)
	if err != nil {
		return nil, errors.Wrap(err, "list observations")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (observation.Observation, error) {
		o, err := scanObservation(row)
		if err != nil {
			return observation.Observation{}, err
		}
		return *o, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan observations")
	}
	return out, nil
}

// CreateObservation inserts o without a file and sets its ID and creation
// time.
func (r *ObservationRepository) CreateObservation(ctx context.Context, o *observation.Observation) error {
	var errVal decimal.NullDecimal
	if o.Error != nil {
		errVal = decimal.NewNullDecimal(*o.Error)
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO observation (object_name, facility_id, time, value, error)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created`,
		o.ObjectName, o.FacilityID, o.Time, o.Value, errVal,
	).Scan(&o.ID, &o.Created)
	if err != nil {
		return writeErr(err, "insert observation")
	}
	return nil
}

func (r *ObservationRepository) File(ctx context.Context, id int64) (*observation.File, error) {
	var (
		fileType *string
		data     []byte
	)
	err := r.pool.QueryRow(ctx, `SELECT file_type, file FROM observation WHERE id = $1`, id).
		Scan(&fileType, &data)
	if err != nil {
		return nil, lookupErr(err, "observation", "id", id)
	}
	if fileType == nil || data == nil {
		return nil, notFound("file for observation", "id", id)
	}
	return &observation.File{Type: *fileType, Data: data}, nil
}

func (r *ObservationRepository) SaveFile(ctx context.Context, id int64, f *observation.File) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE observation SET file_type = $2, file = $3 WHERE id = $1`, id, f.Type, f.Data)
	if err != nil {
		return writeErr(err, "save observation file")
	}
	if tag.RowsAffected() == 0 {
		return notFound("observation", "id", id)
	}
	return nil
}
