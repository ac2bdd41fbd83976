package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// WithScope holds a pooled connection for the lifetime of one request. Handlers and
// repositories find it with GetScope. A request that cannot get a connection is answered
// with 503 before the handler runs.
func WithScope(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			scope, err := db.Acquire(r.Context())
			if err != nil {
				logger.Error("No database connection for request",
					zap.String("route", r.Pattern),
					zap.Error(err))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "database_unavailable",
					"message": "Database is unavailable, try again later",
				})
				return
			}
			defer scope.Close()

			next(w, r.WithContext(SetScope(r.Context(), scope)))
		}
	}
}
