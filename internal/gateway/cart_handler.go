package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/fjod/cart-recovery/internal/store"
	"github.com/go-chi/chi/v5"
)

var ErrEmptyCart = errors.New("cart is empty, nothing to checkout")

// Cart is the slice of the cart store the handler needs.
type Cart interface {
	AddLine(ctx context.Context, line domain.CartLine) error
	RemoveLine(ctx context.Context, key domain.LineKey) error
	SetQuantity(ctx context.Context, key domain.LineKey, quantity int) error
	Clear(ctx context.Context, markRecovered bool) error
	Lines() []domain.CartLine
	Totals() domain.Totals
	IsEmpty() bool
}

// Session is the identity surface exposed to the UI.
type Session interface {
	SignIn(userID, email string)
	SignOut()
	Key() string
	SessionID() string
	UserID() string
}

type CartHandler struct {
	cart    Cart
	session Session
	timeout time.Duration
}

func NewCartHandler(cart Cart, session Session, timeout time.Duration) *CartHandler {
	return &CartHandler{
		cart:    cart,
		session: session,
		timeout: timeout,
	}
}

type AddLineRequestDTO struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Size      string  `json:"size"`
	Color     string  `json:"color,omitempty"`
	Image     string  `json:"image,omitempty"`
	BundleID  string  `json:"bundle_id,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SignInRequestDTO struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type CartResponseDTO struct {
	Lines  []domain.CartLine `json:"lines"`
	Totals domain.Totals     `json:"totals"`
}

func (h *CartHandler) cartResponse() CartResponseDTO {
	return CartResponseDTO{Lines: h.cart.Lines(), Totals: h.cart.Totals()}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) AddLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddLineRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}
	if req.UnitPrice < 0 {
		respondError(w, http.StatusBadRequest, "invalid_price", "unit_price must not be negative")
		return
	}

	err := h.cart.AddLine(ctx, domain.CartLine{
		ProductID: req.ProductID,
		Name:      req.Name,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
		Size:      req.Size,
		Color:     req.Color,
		Image:     req.Image,
		BundleID:  req.BundleID,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_line", err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, h.cartResponse())
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := lineKeyFromRequest(r)
	if key.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	// Quantity zero or less removes the line.
	if err := h.cart.SetQuantity(ctx, key, req.Quantity); err != nil {
		if errors.Is(err, store.ErrLineNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "line not found in cart")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	key := lineKeyFromRequest(r)
	if key.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	if err := h.cart.RemoveLine(ctx, key); err != nil {
		if errors.Is(err, store.ErrLineNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "line not found in cart")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.cart.Clear(ctx, false); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse())
}

// Checkout completes the purchase: payment capture is mocked upstream of
// this engine, so a non-empty cart always converts. The remote record is
// marked recovered before the local cart clears.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if h.cart.IsEmpty() {
		respondError(w, http.StatusConflict, "empty_cart", ErrEmptyCart.Error())
		return
	}

	totals := h.cart.Totals()

	if err := h.cart.Clear(ctx, true); err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "completed",
		"total":  totals.Total,
	})
}

func (h *CartHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	h.session.SignIn(req.UserID, req.Email)
	respondJSON(w, http.StatusOK, map[string]string{"identity_key": h.session.Key()})
}

func (h *CartHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	h.session.SignOut()
	respondJSON(w, http.StatusOK, map[string]string{"identity_key": h.session.Key()})
}

func lineKeyFromRequest(r *http.Request) domain.LineKey {
	return domain.LineKey{
		ProductID: chi.URLParam(r, "product_id"),
		Size:      r.URL.Query().Get("size"),
		Color:     r.URL.Query().Get("color"),
	}
}
