// Package handler implements the HTTP routes of the API on top of the
// domain services.
package handler

import (
	"net/http"

	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/domain/observation"
	"github.com/refitt/refitt-api/internal/domain/profile"
	"github.com/refitt/refitt-api/internal/endpoint"
)

// object is a JSON object in a response payload.
type object = map[string]any

// Handler serves the API routes, delegating business logic to the domain
// services.
type Handler struct {
	auth         *auth.Service
	profiles     *profile.Service
	observations *observation.Service
	guard        *endpoint.Guard

	routes []route
}

// New constructs a Handler with the required domain dependencies.
func New(
	authService *auth.Service,
	profiles *profile.Service,
	observations *observation.Service,
	guard *endpoint.Guard,
) *Handler {
	return &Handler{
		auth:         authService,
		profiles:     profiles,
		observations: observations,
		guard:        guard,
	}
}

// Permission descriptions listed by /info.
const (
	permCredentials = "Client key and secret"
	permAny         = "Any authenticated client"
	permAdmin       = "Admin (level 0)"
)

type route struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
	Permissions string `json:"permissions"`
}

// Register adds all routes to mux. Requests that match no route get a
// NotFound envelope.
func (h *Handler) Register(mux *http.ServeMux) {
	g := h.guard

	h.handle(mux, "GET", "/token", "Issue a token for the calling client", permCredentials,
		endpoint.JSON(endpoint.Authenticate(g, h.getToken)))
	h.handle(mux, "GET", "/token/{user_id}", "Issue a token for a user's client", permAdmin,
		endpoint.JSON(admin(g, h.getTokenForUser)))

	h.handle(mux, "GET", "/client/{user_id}", "Create or regenerate client credentials", permAdmin,
		endpoint.JSON(admin(g, h.getClient)))
	h.handle(mux, "GET", "/client/secret/{user_id}", "Regenerate client secret", permAdmin,
		endpoint.JSON(admin(g, h.getClientSecret)))
	h.handle(mux, "PUT", "/client/{user_id}/revoke", "Revoke client access", permAdmin,
		endpoint.JSON(admin(g, h.setAccess(false))))
	h.handle(mux, "PUT", "/client/{user_id}/restore", "Restore client access", permAdmin,
		endpoint.JSON(admin(g, h.setAccess(true))))

	h.handle(mux, "POST", "/user", "Add or overwrite user profile", permAdmin,
		endpoint.JSON(admin(g, h.addUser)))
	h.handle(mux, "GET", "/user/{id_or_alias}", "Request user profile", permAdmin,
		endpoint.JSON(admin(g, h.getUser)))
	h.handle(mux, "PUT", "/user/{user_id}", "Update user profile attributes", permAdmin,
		endpoint.JSON(admin(g, h.updateUser)))
	h.handle(mux, "DELETE", "/user/{user_id}", "Delete user profile", permAdmin,
		endpoint.JSON(admin(g, h.deleteUser)))
	h.handle(mux, "GET", "/user/{user_id}/facility", "Request all facilities of a user", permAdmin,
		endpoint.JSON(admin(g, h.getUserFacilities)))
	h.handle(mux, "GET", "/user/{user_id}/facility/{facility_id}", "Request facility associated with user", permAdmin,
		endpoint.JSON(admin(g, h.getUserFacility)))
	h.handle(mux, "PUT", "/user/{user_id}/facility/{facility_id}", "Associate facility with user", permAdmin,
		endpoint.JSON(admin(g, h.associate)))
	h.handle(mux, "DELETE", "/user/{user_id}/facility/{facility_id}", "Dissociate facility from user", permAdmin,
		endpoint.JSON(admin(g, h.dissociate)))

	h.handle(mux, "POST", "/facility", "Add or overwrite facility profile", permAdmin,
		endpoint.JSON(admin(g, h.addFacility)))
	h.handle(mux, "GET", "/facility/{id_or_name}", "Request facility profile", permAdmin,
		endpoint.JSON(admin(g, h.getFacility)))
	h.handle(mux, "PUT", "/facility/{facility_id}", "Update facility profile attributes", permAdmin,
		endpoint.JSON(admin(g, h.updateFacility)))
	h.handle(mux, "DELETE", "/facility/{facility_id}", "Delete facility profile", permAdmin,
		endpoint.JSON(admin(g, h.deleteFacility)))
	h.handle(mux, "GET", "/facility/{facility_id}/user", "Request all users of a facility", permAdmin,
		endpoint.JSON(admin(g, h.getFacilityUsers)))
	h.handle(mux, "GET", "/facility/{facility_id}/user/{user_id}", "Request user associated with facility", permAdmin,
		endpoint.JSON(admin(g, h.getFacilityUser)))
	h.handle(mux, "PUT", "/facility/{facility_id}/user/{user_id}", "Associate user with facility", permAdmin,
		endpoint.JSON(admin(g, h.associate)))
	h.handle(mux, "DELETE", "/facility/{facility_id}/user/{user_id}", "Dissociate user from facility", permAdmin,
		endpoint.JSON(admin(g, h.dissociate)))

	h.handle(mux, "POST", "/observation", "Add observation", permAdmin,
		endpoint.JSON(admin(g, h.addObservation)))
	h.handle(mux, "GET", "/observation/{observation_id}", "Request observation", permAny,
		endpoint.JSON(endpoint.Authenticated(g, h.getObservation)))
	h.handle(mux, "GET", "/object/{object_name}/observation", "Request all observations of an object", permAny,
		endpoint.JSON(endpoint.Authenticated(g, h.getObjectObservations)))
	h.handle(mux, "GET", "/observation/{observation_id}/file", "Download observation data file", permAny,
		endpoint.Streaming(endpoint.Authenticated(g, h.getObservationFile)))
	h.handle(mux, "PUT", "/observation/{observation_id}/file", "Upload observation data file", permAdmin,
		endpoint.JSON(admin(g, h.putObservationFile)))

	h.handle(mux, "GET", "/info", "List API endpoints", permAny,
		endpoint.JSON(endpoint.Authenticated(g, h.getInfo)))

	mux.Handle("/", endpoint.NotFound())
}

func (h *Handler) handle(mux *http.ServeMux, method, path, description, permissions string, hh http.Handler) {
	h.routes = append(h.routes, route{
		Method:      method,
		Path:        path,
		Description: description,
		Permissions: permissions,
	})
	mux.Handle(method+" "+path, hh)
}

// admin requires a bearer token belonging to an admin client.
func admin[T any](g *endpoint.Guard, next endpoint.ClientHandler[T]) endpoint.Handler[T] {
	return endpoint.Authenticated(g, endpoint.Authorization(g, auth.AdminLevel, next))
}

func (h *Handler) getInfo(*endpoint.Request, *auth.Client) (object, error) {
	return object{"endpoints": h.routes}, nil
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
