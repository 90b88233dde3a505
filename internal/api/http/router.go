package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires the REST surface. The websocket endpoint is registered by
// the caller since it has its own auth path (handshake-time gate).
func NewRouter(bookings *BookingHandler, auth *AuthMiddleware) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(auth.Handle)

	api.HandleFunc("/bookings", bookings.Create).Methods(http.MethodPost)
	api.HandleFunc("/bookings", bookings.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bookings.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/accept", bookings.Accept).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/decline", bookings.Decline).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/propose-terms", bookings.ProposeTerms).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/activate", bookings.Activate).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/complete", bookings.Complete).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/close", bookings.Close).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/dispute", bookings.Dispute).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/resolve", bookings.Resolve).Methods(http.MethodPost)

	return r
}
