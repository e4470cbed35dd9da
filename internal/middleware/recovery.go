package middleware

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"runtime/debug"

	"github.com/centinelapos/webapp/internal/telemetry/metrics"
	"github.com/centinelapos/webapp/pkg"

	log "github.com/sirupsen/logrus"
)

const errorPageFormat = `<!doctype html>
<html lang="es">
<head><meta charset="utf-8"><title>Centinela POS</title></head>
<body>
<h1>Algo salió mal</h1>
<p>Ocurrió un error inesperado. Inténtalo de nuevo en unos minutos.</p>
<p><a href="%s/">Volver al inicio</a></p>
</body>
</html>`

// PanicRecovery turns a panicking page handler into a plain error page.
func PanicRecovery(basePath string, metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	errorPage := fmt.Sprintf(errorPageFormat, html.EscapeString(basePath))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// net/http uses it to abort the response silently
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Errorf("panic serving page: %v\n%s", rec, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteResponse(w, pkg.ContentType.HTML, errorPage, http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
