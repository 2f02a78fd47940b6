package handler

import (
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/domain/profile"
	"github.com/refitt/refitt-api/internal/endpoint"
)

func (h *Handler) addUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	var u profile.User
	if err := r.DecodeJSON(&u); err != nil {
		return nil, err
	}
	if err := h.profiles.SaveUser(r.Context(), &u); err != nil {
		return nil, err
	}
	return object{"user": object{"id": u.ID}}, nil
}

func (h *Handler) getUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	u, err := h.profiles.User(r.Context(), r.Param("id_or_alias"))
	if err != nil {
		return nil, err
	}
	return object{"user": u}, nil
}

func (h *Handler) updateUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	u, err := h.profiles.UpdateUser(r.Context(), userID, r.Query())
	if err != nil {
		return nil, err
	}
	return object{"user": u}, nil
}

func (h *Handler) deleteUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	if err := h.profiles.DeleteUser(r.Context(), userID); err != nil {
		return nil, err
	}
	return object{"user": object{"id": userID}}, nil
}

func (h *Handler) getUserFacilities(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	facilities, err := h.profiles.FacilitiesOf(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return object{"facility": orEmpty(facilities)}, nil
}

func (h *Handler) getUserFacility(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, facilityID, err := pairParams(r)
	if err != nil {
		return nil, err
	}
	_, f, err := h.profiles.Pair(r.Context(), userID, facilityID)
	if err != nil {
		return nil, err
	}
	return object{"facility": f}, nil
}

func (h *Handler) addFacility(r *endpoint.Request, _ *auth.Client) (object, error) {
	var f profile.Facility
	if err := r.DecodeJSON(&f); err != nil {
		return nil, err
	}
	if err := h.profiles.SaveFacility(r.Context(), &f); err != nil {
		return nil, err
	}
	return object{"facility": object{"id": f.ID}}, nil
}

func (h *Handler) getFacility(r *endpoint.Request, _ *auth.Client) (object, error) {
	f, err := h.profiles.Facility(r.Context(), r.Param("id_or_name"))
	if err != nil {
		return nil, err
	}
	return object{"facility": f}, nil
}

func (h *Handler) updateFacility(r *endpoint.Request, _ *auth.Client) (object, error) {
	facilityID, err := r.IntParam("facility_id")
	if err != nil {
		return nil, err
	}
	f, err := h.profiles.UpdateFacility(r.Context(), facilityID, r.Query())
	if err != nil {
		return nil, err
	}
	return object{"facility": f}, nil
}

func (h *Handler) deleteFacility(r *endpoint.Request, _ *auth.Client) (object, error) {
	facilityID, err := r.IntParam("facility_id")
	if err != nil {
		return nil, err
	}
	if err := h.profiles.DeleteFacility(r.Context(), facilityID); err != nil {
		return nil, err
	}
	return object{"facility": object{"id": facilityID}}, nil
}

func (h *Handler) getFacilityUsers(r *endpoint.Request, _ *auth.Client) (object, error) {
	facilityID, err := r.IntParam("facility_id")
	if err != nil {
		return nil, err
	}
	users, err := h.profiles.UsersOf(r.Context(), facilityID)
	if err != nil {
		return nil, err
	}
	return object{"user": orEmpty(users)}, nil
}

func (h *Handler) getFacilityUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, facilityID, err := pairParams(r)
	if err != nil {
		return nil, err
	}
	u, _, err := h.profiles.Pair(r.Context(), userID, facilityID)
	if err != nil {
		return nil, err
	}
	return object{"user": u}, nil
}

// associate and dissociate serve both the /user/.../facility/... and the
// /facility/.../user/... forms.
func (h *Handler) associate(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, facilityID, err := pairParams(r)
	if err != nil {
		return nil, err
	}
	return object{}, h.profiles.Associate(r.Context(), userID, facilityID)
}

func (h *Handler) dissociate(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, facilityID, err := pairParams(r)
	if err != nil {
		return nil, err
	}
	return object{}, h.profiles.Dissociate(r.Context(), userID, facilityID)
}

func pairParams(r *endpoint.Request) (userID, facilityID int64, err error) {
	if userID, err = r.IntParam("user_id"); err != nil {
		return 0, 0, err
	}
	if facilityID, err = r.IntParam("facility_id"); err != nil {
		return 0, 0, err
	}
	return userID, facilityID, nil
}
