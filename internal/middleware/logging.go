package middleware

import (
	"net/http"
	"time"

	"github.com/centinelapos/webapp/pkg"

	log "github.com/sirupsen/logrus"
)

// LogRequest logs every served request once it is done. Server errors are
// logged as warnings, the rest at debug level.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			resp := &responseWriter{w, http.StatusOK}

			next.ServeHTTP(resp, r)

			entry := log.WithFields(log.Fields{
				"method":   r.Method,
				"route":    routeName(r),
				"status":   resp.statusCode,
				"ip":       pkg.ReadUserIP(r),
				"duration": time.Since(begin).Round(time.Millisecond).String(),
			})
			if resp.statusCode >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return
			}
			entry.Debug("request served")
		})
	}
}
