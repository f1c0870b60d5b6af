package witness

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/sentinelgov/auditchain/pkg/log"
)

// Authorized checks the shared-secret auth the cron endpoints require:
// either "Authorization: Bearer <secret>" or "x-cron-secret: <secret>".
// An empty configured secret is development mode: every request is
// allowed and a warning is logged on each one.
func Authorized(r *http.Request, secret string) bool {
	if secret == "" {
		witnessLog := log.WithComponent("witness")
		witnessLog.Warn().
			Msg("CRON_SECRET is unset; cron endpoint running unauthenticated (development mode)")
		return true
	}

	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		candidate := strings.TrimPrefix(auth, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
			return true
		}
	}

	if candidate := r.Header.Get("x-cron-secret"); candidate != "" {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(secret)) == 1 {
			return true
		}
	}

	return false
}
