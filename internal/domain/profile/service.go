package profile

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/validate"
)

// Service implements profile management on top of a Repository.
type Service struct {
	repo  Repository
	check *validate.Validator
}

// NewService creates a profile Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, check: validate.New()}
}

// SaveUser validates u and stores it. A zero ID creates a new user.
func (s *Service) SaveUser(ctx context.Context, u *User) error {
	if err := s.check.Payload(u); err != nil {
		return err
	}
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return errors.Wrap(err, "save user")
	}
	return nil
}

// User looks up a user by numeric id or by alias.
func (s *Service) User(ctx context.Context, idOrAlias string) (*User, error) {
	if id, err := strconv.ParseInt(idOrAlias, 10, 64); err == nil {
		return s.repo.UserByID(ctx, id)
	}
	return s.repo.UserByAlias(ctx, idOrAlias)
}

// UpdateUser applies query parameters to the stored user.
func (s *Service) UpdateUser(ctx context.Context, id int64, params url.Values) (*User, error) {
	u, err := s.repo.UserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyUserParams(u, params); err != nil {
		return nil, err
	}
	if err := s.check.Params(u); err != nil {
		return nil, err
	}
	if err := s.repo.SaveUser(ctx, u); err != nil {
		return nil, errors.Wrap(err, "save user")
	}
	return u, nil
}

// DeleteUser removes the user. It fails while the user is associated with a
// facility.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.repo.UserByID(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteUser(ctx, id)
}

// SaveFacility validates f and stores it. A zero ID creates a new facility.
func (s *Service) SaveFacility(ctx context.Context, f *Facility) error {
	if err := s.check.Payload(f); err != nil {
		return err
	}
	if err := s.repo.SaveFacility(ctx, f); err != nil {
		return errors.Wrap(err, "save facility")
	}
	return nil
}

// Facility looks up a facility by numeric id or by name.
func (s *Service) Facility(ctx context.Context, idOrName string) (*Facility, error) {
	if id, err := strconv.ParseInt(idOrName, 10, 64); err == nil {
		return s.repo.FacilityByID(ctx, id)
	}
	return s.repo.FacilityByName(ctx, idOrName)
}

// UpdateFacility applies query parameters to the stored facility.
func (s *Service) UpdateFacility(ctx context.Context, id int64, params url.Values) (*Facility, error) {
	f, err := s.repo.FacilityByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ApplyFacilityParams(f, params); err != nil {
		return nil, err
	}
	if err := s.check.Params(f); err != nil {
		return nil, err
	}
	if err := s.repo.SaveFacility(ctx, f); err != nil {
		return nil, errors.Wrap(err, "save facility")
	}
	return f, nil
}

// DeleteFacility removes the facility. It fails while the facility is
// associated with a user.
func (s *Service) DeleteFacility(ctx context.Context, id int64) error {
	if _, err := s.repo.FacilityByID(ctx, id); err != nil {
		return err
	}
	return s.repo.DeleteFacility(ctx, id)
}

// FacilitiesOf lists the facilities associated with a user.
func (s *Service) FacilitiesOf(ctx context.Context, userID int64) ([]Facility, error) {
	if _, err := s.repo.UserByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.FacilitiesOf(ctx, userID)
}

// UsersOf lists the users associated with a facility.
func (s *Service) UsersOf(ctx context.Context, facilityID int64) ([]User, error) {
	if _, err := s.repo.FacilityByID(ctx, facilityID); err != nil {
		return nil, err
	}
	return s.repo.UsersOf(ctx, facilityID)
}

// Pair returns the user and facility if they are associated.
func (s *Service) Pair(ctx context.Context, userID, facilityID int64) (*User, *Facility, error) {
	u, f, err := s.both(ctx, userID, facilityID)
	if err != nil {
		return nil, nil, err
	}
	ok, err := s.repo.Associated(ctx, userID, facilityID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "check association")
	}
	if !ok {
		return nil, nil, apierr.New(apierr.RecordNotFound,
			fmt.Sprintf("Facility (%d) not associated with user (%d)", facilityID, userID))
	}
	return u, f, nil
}

// Associate maps a user to a facility. Associating twice is not an error.
func (s *Service) Associate(ctx context.Context, userID, facilityID int64) error {
	if _, _, err := s.both(ctx, userID, facilityID); err != nil {
		return err
	}
	return s.repo.Associate(ctx, userID, facilityID)
}

// Dissociate removes the mapping between a user and a facility.
func (s *Service) Dissociate(ctx context.Context, userID, facilityID int64) error {
	if _, _, err := s.both(ctx, userID, facilityID); err != nil {
		return err
	}
	return s.repo.Dissociate(ctx, userID, facilityID)
}

func (s *Service) both(ctx context.Context, userID, facilityID int64) (*User, *Facility, error) {
	u, err := s.repo.UserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.repo.FacilityByID(ctx, facilityID)
	if err != nil {
		return nil, nil, err
	}
	return u, f, nil
}
