package handler

import (
	"context"
	"fmt"
	"sync"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/domain/observation"
	"github.com/refitt/refitt-api/internal/domain/profile"
)

// store is an in-memory implementation of every repository the handlers use.
type store struct {
	mu         sync.Mutex
	seq        int64
	clients    map[int64]*auth.Client
	users      map[int64]*profile.User
	facilities map[int64]*profile.Facility
	mapping    map[[2]int64]bool
	obs        map[int64]*observation.Observation
	files      map[int64]*observation.File
}

func newStore() *store {
	return &store{
		clients:    map[int64]*auth.Client{},
		users:      map[int64]*profile.User{},
		facilities: map[int64]*profile.Facility{},
		mapping:    map[[2]int64]bool{},
		obs:        map[int64]*observation.Observation{},
		files:      map[int64]*observation.File{},
	}
}

func (s *store) next() int64 {
	s.seq++
	return s.seq
}

// seedUser stores a placeholder user with the given id unless one exists.
func (s *store) seedUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; ok {
		return
	}
	s.users[id] = &profile.User{
		ID:        id,
		FirstName: "Test",
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@example.org", id),
		Alias:     fmt.Sprintf("user%d", id),
	}
	s.seq = max(s.seq, id)
}

func missing(record, field string, v any) error {
	return apierr.Newf(apierr.RecordNotFound, "No %s with %s=%v", record, field, v)
}

// clients

type clientRepo struct{ *store }

func (s clientRepo) find(match func(*auth.Client) bool, field string, v any) (*auth.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if match(c) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, missing("client", field, v)
}

func (s clientRepo) ClientByID(_ context.Context, id int64) (*auth.Client, error) {
	return s.find(func(c *auth.Client) bool { return c.ID == id }, "id", id)
}

func (s clientRepo) ClientByKey(_ context.Context, key string) (*auth.Client, error) {
	return s.find(func(c *auth.Client) bool { return c.Key == key }, "key", key)
}

func (s clientRepo) ClientByUser(_ context.Context, userID int64) (*auth.Client, error) {
	return s.find(func(c *auth.Client) bool { return c.UserID == userID }, "user_id", userID)
}

func (s clientRepo) CreateClient(_ context.Context, c *auth.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[c.UserID]; !ok {
		return missing("user", "id", c.UserID)
	}
	c.ID = s.next()
	cp := *c
	s.clients[c.ID] = &cp
	return nil
}

func (s clientRepo) UpdateCredentials(_ context.Context, id int64, key, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id].Key, s.clients[id].Secret = key, secret
	return nil
}

func (s clientRepo) SetValid(_ context.Context, id int64, valid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[id].Valid = valid
	return nil
}

func (s clientRepo) UpsertSession(context.Context, *auth.Session) error { return nil }

// profiles

type profileRepo struct{ *store }

func (s profileRepo) UserByID(_ context.Context, id int64) (*profile.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, missing("user", "id", id)
	}
	cp := *u
	return &cp, nil
}

func (s profileRepo) UserByAlias(_ context.Context, alias string) (*profile.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Alias == alias {
			cp := *u
			return &cp, nil
		}
	}
	return nil, missing("user", "alias", alias)
}

func (s profileRepo) SaveUser(_ context.Context, u *profile.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.next()
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s profileRepo) DeleteUser(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.mapping {
		if p[0] == id {
			return apierr.New(apierr.ConstraintViolation, "Constraint violation (facility_map_user_id_fkey)")
		}
	}
	delete(s.users, id)
	return nil
}

func (s profileRepo) FacilityByID(_ context.Context, id int64) (*profile.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.facilities[id]
	if !ok {
		return nil, missing("facility", "id", id)
	}
	cp := *f
	return &cp, nil
}

func (s profileRepo) FacilityByName(_ context.Context, name string) (*profile.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.facilities {
		if f.Name == name {
			cp := *f
			return &cp, nil
		}
	}
	return nil, missing("facility", "name", name)
}

func (s profileRepo) SaveFacility(_ context.Context, f *profile.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		f.ID = s.next()
	}
	cp := *f
	s.facilities[f.ID] = &cp
	return nil
}

func (s profileRepo) DeleteFacility(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.facilities, id)
	return nil
}

func (s profileRepo) FacilitiesOf(_ context.Context, userID int64) ([]profile.Facility, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []profile.Facility
	for p := range s.mapping {
		if p[0] == userID {
			out = append(out, *s.facilities[p[1]])
		}
	}
	return out, nil
}

func (s profileRepo) UsersOf(_ context.Context, facilityID int64) ([]profile.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []profile.User
	for p := range s.mapping {
		if p[1] == facilityID {
			out = append(out, *s.users[p[0]])
		}
	}
	return out, nil
}

func (s profileRepo) Associated(_ context.Context, userID, facilityID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mapping[[2]int64{userID, facilityID}], nil
}

func (s profileRepo) Associate(_ context.Context, userID, facilityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping[[2]int64{userID, facilityID}] = true
	return nil
}

func (s profileRepo) Dissociate(_ context.Context, userID, facilityID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mapping, [2]int64{userID, facilityID})
	return nil
}

// observations

type observationRepo struct{ *store }

func (s observationRepo) ObservationByID(_ context.Context, id int64) (*observation.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.obs[id]
	if !ok {
		return nil, missing("observation", "id", id)
	}
	cp := *o
	return &cp, nil
}

func (s observationRepo) ObservationsOf(_ context.Context, name string) ([]observation.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []observation.Observation
	for _, o := range s.obs {
		if o.ObjectName == name {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s observationRepo) CreateObservation(_ context.Context, o *observation.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facilities[o.FacilityID]; !ok {
		return apierr.New(apierr.ConstraintViolation, "Constraint violation (observation_facility_id_fkey)")
	}
	o.ID = s.next()
	cp := *o
	s.obs[o.ID] = &cp
	return nil
}

func (s observationRepo) File(_ context.Context, id int64) (*observation.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[id]
	if !ok {
		return nil, missing("file for observation", "id", id)
	}
	return f, nil
}

func (s observationRepo) SaveFile(_ context.Context, id int64, f *observation.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.obs[id]; !ok {
		return missing("observation", "id", id)
	}
	s.files[id] = f
	s.obs[id].FileType = f.Type
	s.obs[id].FileSize = int64(len(f.Data))
	return nil
}
