package dms

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterDMRoutes registers the DM REST routes on r. Authentication is
// expected to be applied by r's middleware.
func RegisterDMRoutes(r *mux.Router, handler *DMHandler) {
	r.HandleFunc("/dms/start", handler.StartOrGetConversation).Methods(http.MethodPost)
	r.HandleFunc("/dms", handler.ListConversations).Methods(http.MethodGet)
	r.HandleFunc("/dms/{id}/messages", handler.GetMessages).Methods(http.MethodGet)
	r.HandleFunc("/dms/{id}/messages", handler.SendMessage).Methods(http.MethodPost)
}
