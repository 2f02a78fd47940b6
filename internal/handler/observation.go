package handler

import (
	"net/http"
	"strconv"

	"github.com/refitt/refitt-api/internal/apierr"
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/domain/observation"
	"github.com/refitt/refitt-api/internal/endpoint"
)

func (h *Handler) addObservation(r *endpoint.Request, _ *auth.Client) (object, error) {
	var o observation.Observation
	if err := r.DecodeJSON(&o); err != nil {
		return nil, err
	}
	if err := h.observations.Create(r.Context(), &o); err != nil {
		return nil, err
	}
	return object{"observation": object{"id": o.ID}}, nil
}

func (h *Handler) getObservation(r *endpoint.Request, _ *auth.Client) (object, error) {
	id, err := r.IntParam("observation_id")
	if err != nil {
		return nil, err
	}
	o, err := h.observations.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return object{"observation": o}, nil
}

func (h *Handler) getObjectObservations(r *endpoint.Request, _ *auth.Client) (object, error) {
	list, err := h.observations.ForObject(r.Context(), r.Param("object_name"))
	if err != nil {
		return nil, err
	}
	return object{"observation": orEmpty(list)}, nil
}

func (h *Handler) putObservationFile(r *endpoint.Request, _ *auth.Client) (object, error) {
	id, err := r.IntParam("observation_id")
	if err != nil {
		return nil, err
	}
	fileType := r.Query().Get("type")
	if fileType == "" {
		return nil, apierr.New(apierr.ParameterInvalid, "Missing parameter 'type'")
	}
	data, err := r.Data()
	if err != nil {
		return nil, err
	}
	o, err := h.observations.AttachFile(r.Context(), id, fileType, data)
	if err != nil {
		return nil, err
	}
	return object{"observation": object{
		"id":        o.ID,
		"file_type": o.FileType,
		"file_size": o.FileSize,
	}}, nil
}

func (h *Handler) getObservationFile(r *endpoint.Request, _ *auth.Client) (*endpoint.Stream, error) {
	id, err := r.IntParam("observation_id")
	if err != nil {
		return nil, err
	}
	compress := r.Query().Get("compress")
	if compress != "" && compress != "gzip" {
		return nil, apierr.Newf(apierr.ParameterInvalid, "Unsupported compression: '%s'", compress)
	}
	f, err := h.observations.File(r.Context(), id)
	if err != nil {
		return nil, err
	}

	name := "observation-" + strconv.FormatInt(id, 10) + "." + f.Type
	header := http.Header{}
	if compress == "gzip" {
		name += ".gz"
		header.Set("Content-Type", "application/gzip")
		header.Set("Content-Disposition", `attachment; filename="`+name+`"`)
		return &endpoint.Stream{Header: header, Chunks: gzipChunks(f.Data)}, nil
	}
	header.Set("Content-Disposition", `attachment; filename="`+name+`"`)
	header.Set("Content-Length", strconv.Itoa(len(f.Data)))
	return &endpoint.Stream{Header: header, Chunks: chunks(f.Data)}, nil
}
