package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/splitbill/internal/auth/service"
	"github.com/aussiebroadwan/splitbill/pkg/authsdk"
	"github.com/aussiebroadwan/splitbill/pkg/httpx"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
)

// SessionHandler serves the session endpoints: login, refresh and logout.
type SessionHandler struct {
	Sessions *service.SessionService
}

// HandleLogin godoc
//
//	@Summary		Start a session
//	@Description	Exchanges an identity assertion (an ID token from the configured identity provider) for an access and refresh token pair.
//	@Description	Any previous refresh token of the user stops working.
//	@Tags			Session
//	@Produce		json
//	@Param			Authorization	header		string					true	"Bearer {identity assertion}"
//	@Success		200				{object}	authsdk.TokenPair		"accessToken, refreshToken"
//	@Failure		400				{object}	authsdk.ErrorResponse	"missing assertion"
//	@Failure		401				{object}	authsdk.ErrorResponse	"login_rejected"
//	@Failure		429				{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		500				{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/login [post].
func (h *SessionHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	assertion, ok := httpx.BearerToken(r)
	if !ok {
		authsdk.InvalidRequestError.WriteError(w)
		return
	}

	pair, err := h.Sessions.CreateSession(ctx, assertion)
	switch {
	case errors.Is(err, service.ErrLoginRejected):
		authsdk.LoginRejectedError.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(ctx).Error("login failed", "err", err)
		authsdk.ServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// HandleRefresh godoc
//
//	@Summary		Rotate a refresh token
//	@Description	Presents a refresh token exactly once and returns a new pair. Reused, revoked, expired and unknown tokens are all rejected the same way.
//	@Tags			Session
//	@Produce		json
//	@Param			Authorization	header		string					true	"Bearer {refresh token}"
//	@Success		200				{object}	authsdk.TokenPair		"accessToken, refreshToken"
//	@Failure		400				{object}	authsdk.ErrorResponse	"missing refresh token"
//	@Failure		401				{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		429				{object}	authsdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		500				{object}	authsdk.ErrorResponse	"server_error"
//	@Header			200				{string}	Cache-Control			"no-store"
//	@Router			/refresh [post].
func (h *SessionHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refresh, ok := httpx.BearerToken(r)
	if !ok {
		authsdk.InvalidRequestError.WriteError(w)
		return
	}

	pair, err := h.Sessions.RefreshSession(ctx, refresh)
	switch {
	case errors.Is(err, service.ErrInvalidToken):
		authsdk.InvalidTokenError.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(ctx).Error("refresh failed", "err", err)
		authsdk.ServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenPair{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// HandleLogout godoc
//
//	@Summary		End the session
//	@Description	Revokes the caller's refresh token. The access token stays valid until it expires.
//	@Tags			Session
//	@Security		BearerAuth
//	@Success		204
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/logout [post].
func (h *SessionHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.InvalidTokenError.WriteError(w)
		return
	}

	if err := h.Sessions.Revoke(ctx, userID); err != nil {
		slogx.FromContext(ctx).Error("logout failed", "err", err)
		authsdk.ServerError.WriteError(w)
		return
	}

	slogx.FromContext(ctx).Info("session revoked")
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}
