package web

// context.go extracts the calling owner's identity.
//
// Authentication is terminated upstream; the gateway forwards the
// authenticated owner in the X-Owner-ID header. Handlers that read or write
// owner-scoped data reject requests without it.

import "net/http"

// ownerIDHeader carries the authenticated owner forwarded by the gateway.
const ownerIDHeader = "X-Owner-ID"

// ownerID returns the owner identity from the request, or "".
func ownerID(r *http.Request) string {
	return r.Header.Get(ownerIDHeader)
}

// requireOwner extracts the owner or writes a 401 and returns "".
func (s *Server) requireOwner(w http.ResponseWriter, r *http.Request) string {
	owner := ownerID(r)
	if owner == "" {
		s.respondErrorStatus(w, r, http.StatusUnauthorized, "missing "+ownerIDHeader+" header", "UNAUTHENTICATED")
	}
	return owner
}
