package handler

import (
	"github.com/refitt/refitt-api/internal/domain/auth"
	"github.com/refitt/refitt-api/internal/endpoint"
)

func (h *Handler) getToken(r *endpoint.Request, c *auth.Client) (object, error) {
	tok, err := h.auth.IssueToken(r.Context(), c)
	if err != nil {
		return nil, err
	}
	return object{"token": tok}, nil
}

func (h *Handler) getTokenForUser(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	tok, err := h.auth.IssueSession(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return object{"token": tok}, nil
}

func (h *Handler) getClient(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	creds, err := h.auth.Grant(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return object{"client": creds}, nil
}

func (h *Handler) getClientSecret(r *endpoint.Request, _ *auth.Client) (object, error) {
	userID, err := r.IntParam("user_id")
	if err != nil {
		return nil, err
	}
	creds, err := h.auth.RenewSecret(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	return object{"client": creds}, nil
}

func (h *Handler) setAccess(valid bool) endpoint.ClientHandler[object] {
	return func(r *endpoint.Request, _ *auth.Client) (object, error) {
		userID, err := r.IntParam("user_id")
		if err != nil {
			return nil, err
		}
		c, err := h.auth.SetAccess(r.Context(), userID, valid)
		if err != nil {
			return nil, err
		}
		return object{"client": object{"user_id": c.UserID, "valid": c.Valid}}, nil
	}
}
