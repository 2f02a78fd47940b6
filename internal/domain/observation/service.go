package observation

import (
	"context"
	"slices"

	"github.com/go-faster/errors"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/validate"
)

// Service records observations and serves their files.
type Service struct {
	repo  Repository
	check *validate.Validator
}

// NewService creates an observation Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, check: validate.New()}
}

// Create validates and stores o. Any file fields in the payload are ignored;
// files are attached with AttachFile.
func (s *Service) Create(ctx context.Context, o *Observation) error {
	o.ID = 0
	o.FileType = ""
	o.FileSize = 0
	if err := s.check.Payload(o); err != nil {
		return err
	}
	if err := s.repo.CreateObservation(ctx, o); err != nil {
		return errors.Wrap(err, "create observation")
	}
	return nil
}

// Get returns the observation with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Observation, error) {
	return s.repo.ObservationByID(ctx, id)
}

// ForObject lists the observations of an object, oldest first.
func (s *Service) ForObject(ctx context.Context, objectName string) ([]Observation, error) {
	return s.repo.ObservationsOf(ctx, objectName)
}

// File returns the data file of an observation.
func (s *Service) File(ctx context.Context, id int64) (*File, error) {
	if _, err := s.repo.ObservationByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.File(ctx, id)
}

// AttachFile stores data as the file of observation id, replacing any
// previous file.
func (s *Service) AttachFile(ctx context.Context, id int64, fileType string, data []byte) (*Observation, error) {
	if !slices.Contains(FileTypes, fileType) {
		return nil, apierr.Newf(apierr.ParameterInvalid, "Unsupported file type: '%s'", fileType)
	}
	if len(data) == 0 {
		return nil, apierr.New(apierr.PayloadNotFound, "Missing file data")
	}
	o, err := s.repo.ObservationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SaveFile(ctx, id, &File{Type: fileType, Data: data}); err != nil {
		return nil, errors.Wrap(err, "save file")
	}
	o.FileType = fileType
	o.FileSize = int64(len(data))
	return o, nil
}
