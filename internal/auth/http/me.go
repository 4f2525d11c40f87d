package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/splitbill/internal/auth/service"
	"github.com/aussiebroadwan/splitbill/pkg/authsdk"
	"github.com/aussiebroadwan/splitbill/pkg/httpx"
	"github.com/aussiebroadwan/splitbill/pkg/slogx"
)

type MeHandler struct {
	Users *service.UserService
}

// ServeHTTP godoc
//
//	@Summary		Current user
//	@Description	Returns the user the access token was issued to.
//	@Tags			Users
//	@Security		BearerAuth
//	@Produce		json
//	@Success		200	{object}	authsdk.UserResponse	"id, displayName, pictureUrl"
//	@Failure		401	{object}	authsdk.ErrorResponse	"invalid_token"
//	@Failure		500	{object}	authsdk.ErrorResponse	"server_error"
//	@Router			/v1/me [get].
func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := httpx.UserIDFromContext(ctx)
	if !ok {
		authsdk.InvalidTokenError.WriteError(w)
		return
	}

	user, err := h.Users.GetUser(ctx, userID)
	switch {
	case errors.Is(err, service.ErrUserNotFound):
		authsdk.InvalidTokenError.WriteError(w)
		return
	case err != nil:
		slogx.FromContext(ctx).Warn("failed to load user", "err", err)
		authsdk.ServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		PictureURL:  user.PictureURL,
	})
}
