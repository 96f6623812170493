package snapshot

import (
	"errors"
	"net/http"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/session"
)

// Handler serves archived carts over HTTP.
type Handler struct {
	Store Store
}

// Latest returns the most recent archived state of the caller's cart.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "cart archive not configured", nil)
		return
	}
	sid, ok := session.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid cart session", nil)
		return
	}
	rec, err := h.Store.Latest(r.Context(), sid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "no archived cart", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load archived cart", nil)
		return
	}
	common.Data(w, http.StatusOK, rec)
}
