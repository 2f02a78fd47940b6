package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/refitt/refitt-api/internal/domain/profile"
)

var _ profile.Repository = (*ProfileRepository)(nil)

// ProfileRepository stores users, facilities and the facility map.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const (
	userColumns     = `u.id, u.first_name, u.last_name, u.email, u.alias, u.data`
	facilityColumns = `f.id, f.name, f.latitude, f.longitude, f.elevation, f.limiting_magnitude, f.data`
)

func scanUser(row pgx.Row) (*profile.User, error) {
	var u profile.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Alias, &u.Data); err != nil {
		return nil, err
	}
	return &u, nil
}

func scanFacility(row pgx.Row) (*profile.Facility, error) {
	var f profile.Facility
	err := row.Scan(&f.ID, &f.Name, &f.Latitude, &f.Longitude, &f.Elevation, &f.LimitingMagnitude, &f.Data)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func nonNil(data map[string]any) map[string]any {
	if data == nil {
		return map[string]any{}
	}
	return data
}

func (r *ProfileRepository) UserByID(ctx context.Context, id int64) (*profile.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" u WHERE u.id = $1`, id))
	if err != nil {
		return nil, lookupErr(err, "user", "id", id)
	}
	return u, nil
}

func (r *ProfileRepository) UserByAlias(ctx context.Context, alias string) (*profile.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM "user" u WHERE u.alias = $1`, alias))
	if err != nil {
		return nil, lookupErr(err, "user", "alias", alias)
	}
	return u, nil
}

func (r *ProfileRepository) SaveUser(ctx context.Context, u *profile.User) error {
	var err error
	if u.ID == 0 {
		err = r.pool.QueryRow(ctx, `
			INSERT INTO "user" (first_name, last_name, email, alias, data)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			u.FirstName, u.LastName, u.Email, u.Alias, nonNil(u.Data),
		).Scan(&u.ID)
	} else {
		_, err = r.pool.Exec(ctx, `
			INSERT INTO "user" (id, first_name, last_name, email, alias, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name,
			    email = EXCLUDED.email, alias = EXCLUDED.alias, data = EXCLUDED.data`,
			u.ID, u.FirstName, u.LastName, u.Email, u.Alias, nonNil(u.Data),
		)
	}
	if err != nil {
		return writeErr(err, "save user")
	}
	return nil
}

func (r *ProfileRepository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM "user" WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete user")
	}
	if tag.RowsAffected() == 0 {
		return notFound("user", "id", id)
	}
	return nil
}

func (r *ProfileRepository) FacilityByID(ctx context.Context, id int64) (*profile.Facility, error) {
	f, err := scanFacility(r.pool.QueryRow(ctx, `SELECT `+facilityColumns+` FROM facility f WHERE f.id = $1`, id))
	if err != nil {
		return nil, lookupErr(err, "facility", "id", id)
	}
	return f, nil
}

func (r *ProfileRepository) FacilityByName(ctx context.Context, name string) (*profile.Facility, error) {
	f, err := scanFacility(r.pool.QueryRow(ctx, `SELECT `+facilityColumns+` FROM facility f WHERE f.name = $1`, name))
	if err != nil {
		return nil, lookupErr(err, "facility", "name", name)
	}
	return f, nil
}

func (r *ProfileRepository) SaveFacility(ctx context.Context, f *profile.Facility) error {
	var err error
	if f.ID == 0 {
		err = r.pool.QueryRow(ctx, `
			INSERT INTO facility (name, latitude, longitude, elevation, limiting_magnitude, data)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			f.Name, f.Latitude, f.Longitude, f.Elevation, f.LimitingMagnitude, nonNil(f.Data),
		).Scan(&f.ID)
	} else {
		_, err = r.pool.Exec(ctx, `
			INSERT INTO facility (id, name, latitude, longitude, elevation, limiting_magnitude, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, latitude = EXCLUDED.latitude, longitude = EXCLUDED.longitude,
			    elevation = EXCLUDED.elevation, limiting_magnitude = EXCLUDED.limiting_magnitude,
			    data = EXCLUDED.data`,
			f.ID, f.Name, f.Latitude, f.Longitude, f.Elevation, f.LimitingMagnitude, nonNil(f.Data),
		)
	}
	if err != nil {
		return writeErr(err, "save facility")
	}
	return nil
}

func (r *ProfileRepository) DeleteFacility(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM facility WHERE id = $1`, id)
	if err != nil {
		return writeErr(err, "delete facility")
	}
	if tag.RowsAffected() == 0 {
		return notFound("facility", "id", id)
	}
	return nil
}

func (r *ProfileRepository) FacilitiesOf(ctx context.Context, userID int64) ([]profile.Facility, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+facilityColumns+`
		FROM facility f JOIN facility_map m ON m.facility_id = f.id
		WHERE m.user_id = $1
		ORDER BY f.id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list facilities")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (profile.Facility, error) {
		f, err := scanFacility(row)
		if err != nil {
			return profile.Facility{}, err
		}
		return *f, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan facilities")
	}
	return out, nil
}

func (r *ProfileRepository) UsersOf(ctx context.Context, facilityID int64) ([]profile.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM "user" u JOIN facility_map m ON m.user_id = u.id
		WHERE m.facility_id = $1
		ORDER BY u.id`, facilityID)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (profile.User, error) {
		u, err := scanUser(row)
		if err != nil {
			return profile.User{}, err
		}
		return *u, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "scan users")
	}
	return out, nil
}

func (r *ProfileRepository) Associated(ctx context.Context, userID, facilityID int64) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM facility_map WHERE user_id = $1 AND facility_id = $2)`,
		userID, facilityID,
	).Scan(&ok)
	if err != nil {
		return false, errors.Wrap(err, "check facility map")
	}
	return ok, nil
}

func (r *ProfileRepository) Associate(ctx context.Context, userID, facilityID int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO facility_map (user_id, facility_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, userID, facilityID)
	if err != nil {
		return writeErr(err, "insert facility map")
	}
	return nil
}

func (r *ProfileRepository) Dissociate(ctx context.Context, userID, facilityID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM facility_map WHERE user_id = $1 AND facility_id = $2`, userID, facilityID)
	if err != nil {
		return errors.Wrap(err, "delete facility map")
	}
	return nil
}
