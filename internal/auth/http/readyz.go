package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/store"
	"github.com/aussiebroadwan/splitbill/pkg/authsdk"
	"github.com/aussiebroadwan/splitbill/pkg/httpx"
)

// SignerCheck is satisfied by *service.AccessTokens.
type SignerCheck interface {
	Check() error
}

// IdentityReadiness is satisfied by *oidcx.Provider.
type IdentityReadiness interface {
	IsReady() bool
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database, the access token signer and whether identity provider configuration has been loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	signer SignerCheck,
	idp IdentityReadiness,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &authsdk.HealthChecks{
			Database:         "ok",
			Signer:           "ok",
			IdentityProvider: "ok",
		}
		status, code := "ok", http.StatusOK
		fail := func(field *string, msg string) {
			*field = "error: " + msg
			status, code = "degraded", http.StatusServiceUnavailable
		}

		if err := st.Ping(r.Context()); err != nil {
			fail(&checks.Database, err.Error())
		}
		if err := signer.Check(); err != nil {
			fail(&checks.Signer, err.Error())
		}
		if !idp.IsReady() {
			fail(&checks.IdentityProvider, "configuration not loaded")
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
