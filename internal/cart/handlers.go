package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/lock"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/resilience"
	"github.com/noah-isme/toko-cart/internal/security"
	"github.com/noah-isme/toko-cart/internal/session"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc        *Service
	Sessions   *session.Issuer
	Validate   *validator.Validate
	CookieName string
	SecureHTTP bool
}

type addItemPayload struct {
	ProductID string `json:"productId" validate:"required,max=128"`
}

type quantityPayload struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type codePayload struct {
	Code string `json:"code" validate:"max=64"`
}

// Register mounts the cart routes. promo wraps the coupon and voucher endpoints.
func (h *Handler) Register(r chi.Router, requireSession, promo func(http.Handler) http.Handler) {
	if requireSession == nil {
		requireSession = passthrough
	}
	if promo == nil {
		promo = passthrough
	}
	r.Post("/cart/session", h.CreateSession)
	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Get("/cart", h.Get)
		r.Post("/cart/items", h.AddItem)
		r.Delete("/cart/items", h.Clear)
		r.Patch("/cart/items/{productId}", h.UpdateQuantity)
		r.Delete("/cart/items/{productId}", h.RemoveItem)
		r.Get("/cart/coupons", h.AppliedCoupons)
		r.Delete("/cart/items/{productId}/coupon", h.RemoveCoupon)
		r.Delete("/cart/voucher", h.RemoveVoucher)
		r.With(promo).Post("/cart/items/{productId}/coupon", h.ApplyCoupon)
		r.With(promo).Post("/cart/voucher", h.ApplyVoucher)
	})
}

// CreateSession issues a cart session token, refreshing the caller's session when one is present.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "session issuer not configured", nil)
		return
	}
	var (
		tok session.Token
		err error
	)
	if id, ok := session.FromContext(r.Context()); ok {
		tok, err = h.Sessions.IssueFor(id)
	} else {
		tok, err = h.Sessions.Issue()
	}
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to issue session", nil)
		return
	}
	if h.CookieName != "" {
		http.SetCookie(w, &http.Cookie{
			Name:     h.CookieName,
			Value:    tok.Value,
			Path:     "/",
			Expires:  tok.ExpiresAt,
			MaxAge:   int(time.Until(tok.ExpiresAt).Seconds()),
			HttpOnly: true,
			Secure:   h.SecureHTTP,
			SameSite: http.SameSiteLaxMode,
		})
	}
	common.Data(w, http.StatusCreated, tok)
}

// Get returns the cart with recomputed prices.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.Get(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// AddItem adds one unit of a catalog product.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if !h.decode(w, r, &payload) {
		return
	}
	st, err := h.Svc.AddItem(r.Context(), sid, payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// UpdateQuantity sets a line quantity; zero or less removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload quantityPayload
	if !h.decode(w, r, &payload) {
		return
	}
	st, err := h.Svc.UpdateQuantity(r.Context(), sid, chi.URLParam(r, "productId"), *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// RemoveItem deletes a line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.RemoveItem(r.Context(), sid, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// Clear empties the cart. The voucher stays applied.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.Clear(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// ApplyCoupon applies the product's coupon to its line.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload codePayload
	if !h.decode(w, r, &payload) {
		return
	}
	st, res, err := h.Svc.ApplyCoupon(r.Context(), sid, chi.URLParam(r, "productId"), payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, st, res)
}

// RemoveCoupon clears the coupon of a line.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.RemoveCoupon(r.Context(), sid, chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

// AppliedCoupons lists active coupons.
func (h *Handler) AppliedCoupons(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.Get(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, st.AppliedCoupons())
}

// ApplyVoucher applies a cart-wide voucher code.
func (h *Handler) ApplyVoucher(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	var payload codePayload
	if !h.decode(w, r, &payload) {
		return
	}
	st, res, err := h.Svc.ApplyVoucher(r.Context(), sid, payload.Code)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResult(w, st, res)
}

// RemoveVoucher clears the voucher.
func (h *Handler) RemoveVoucher(w http.ResponseWriter, r *http.Request) {
	sid, ok := h.session(w, r)
	if !ok {
		return
	}
	st, err := h.Svc.RemoveVoucher(r.Context(), sid)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.Data(w, http.StatusOK, newView(st))
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return "", false
	}
	sid, ok := session.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid cart session", nil)
		return "", false
	}
	return sid, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if security.IsTooLarge(err) {
			security.WriteTooLarge(w)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	v := h.Validate
	if v == nil {
		v = defaultValidator
	}
	if err := v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "validation failed", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrInsufficientStock):
		common.JSONError(w, http.StatusConflict, "INSUFFICIENT_STOCK", err.Error(), nil)
	case errors.Is(err, lock.ErrNotAcquired):
		common.WriteAppError(w, common.NewAppError("CART_BUSY", "cart is being updated, retry shortly", http.StatusConflict, err).
			WithRetryAfter(time.Second))
	case errors.Is(err, resilience.ErrOpenCircuit):
		common.WriteAppError(w, common.NewAppError("UNAVAILABLE", "catalog temporarily unavailable", http.StatusServiceUnavailable, err).
			WithRetryAfter(5*time.Second))
	default:
		if h.Svc != nil {
			h.Svc.Logger.Error().Err(err).Msg("cart request failed")
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to process cart", nil)
	}
}

var defaultValidator = validator.New(validator.WithRequiredStructEnabled())

func passthrough(next http.Handler) http.Handler { return next }

type promotionResponse struct {
	Result
	Cart View `json:"cart"`
}

func writeResult(w http.ResponseWriter, st *Store, res Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnprocessableEntity
	}
	common.Data(w, status, promotionResponse{Result: res, Cart: newView(st)})
}

// View is the rendered cart returned to clients. Money is formatted with two decimals.
type View struct {
	Items          []ItemView          `json:"items"`
	TotalItems     int                 `json:"totalItems"`
	Summary        SummaryView         `json:"summary"`
	AppliedVoucher *Voucher            `json:"appliedVoucher"`
	AppliedCoupons []AppliedCouponView `json:"appliedCoupons"`
}

// ItemView is one rendered line.
type ItemView struct {
	ProductID      string   `json:"productId"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	OriginalPrice  string   `json:"originalPrice"`
	UnitPrice      string   `json:"unitPrice"`
	LineTotal      string   `json:"lineTotal"`
	IsOnDeal       bool     `json:"isOnDeal"`
	DealPercentage *float64 `json:"dealPercentage,omitempty"`
	Discount       *float64 `json:"discount,omitempty"`
	HasCoupon      bool     `json:"hasCoupon"`
	AppliedCoupon  Coupon   `json:"appliedCoupon"`
}

// SummaryView is the rendered total breakdown.
type SummaryView struct {
	DealSubtotal    string `json:"dealSubtotal"`
	NonDealSubtotal string `json:"nonDealSubtotal"`
	VoucherDiscount string `json:"voucherDiscount"`
	Total           string `json:"total"`
}

func newView(st *Store) View {
	items := st.Items()
	out := View{
		Items:          make([]ItemView, 0, len(items)),
		TotalItems:     st.TotalItems(),
		Summary:        newSummaryView(st.Summary()),
		AppliedCoupons: st.AppliedCoupons(),
	}
	for _, item := range items {
		unit := st.ItemPrice(item)
		out.Items = append(out.Items, ItemView{
			ProductID:      item.Product.ID,
			Name:           strings.TrimSpace(item.Product.Name),
			Quantity:       item.Quantity,
			OriginalPrice:  formatMoney(item.Product.OriginalPrice),
			UnitPrice:      formatMoney(unit),
			LineTotal:      formatMoney(pricing.LineTotal(lineOf(item))),
			IsOnDeal:       item.Product.IsOnDeal,
			DealPercentage: item.Product.DealPercentage,
			Discount:       item.Product.Discount,
			HasCoupon:      item.Product.HasCoupon(),
			AppliedCoupon:  item.AppliedCoupon,
		})
	}
	if v, ok := st.Voucher(); ok {
		out.AppliedVoucher = &v
	}
	return out
}

func newSummaryView(s pricing.Summary) SummaryView {
	return SummaryView{
		DealSubtotal:    formatMoney(s.DealSubtotal),
		NonDealSubtotal: formatMoney(s.NonDealSubtotal),
		VoucherDiscount: formatMoney(s.VoucherDiscount),
		Total:           formatMoney(s.Total),
	}
}

func formatMoney(m pricing.Money) string {
	return m.StringFixed(2)
}
