package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/oit-uog/solr-federator/pkg/logger"
	"github.com/oit-uog/solr-federator/pkg/response"
)

// Recovery catches any panic from internal/httpapi's handlers or the
// coordinator/pager/backend call chain beneath them, logs the stack trace,
// and returns a 500 Internal Server Error to the client instead of taking
// down the single shared process (there is no per-request isolation below
// this point — one Coordinator serves every connection). It wraps every
// middleware registered after it and every handler; middleware registered
// before it (metrics and reqid below) runs outside it.
//
//	r.Use(metrics.Middleware())
//	r.Use(reqid.Middleware())
//	r.Use(middleware.Recovery)   // ← catches panics from all below
//	r.Use(middleware.Logger)
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				stack := debug.Stack()
				logger.Error("panic recovered",
					"error", fmt.Sprintf("%v", err),
					"stack", string(stack),
					"method", r.Method,
					"path", r.URL.Path,
				)
				response.Error(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
