package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	appcart "github.com/mochizuki-dev/marketplace/internal/application/cart"
	appcheckout "github.com/mochizuki-dev/marketplace/internal/application/checkout"
	apporder "github.com/mochizuki-dev/marketplace/internal/application/order"
	domaincart "github.com/mochizuki-dev/marketplace/internal/domain/cart"
	domainorder "github.com/mochizuki-dev/marketplace/internal/domain/order"
	"github.com/mochizuki-dev/marketplace/internal/observability"
)

const componentHTTPHandler = "http_server"

type Handler struct {
	cartService     *appcart.Service
	checkoutService *appcheckout.Service
	orderService    *apporder.Service
	log             observability.Logger
	tel             observability.Observability
}

func NewHandler(
	cartSvc *appcart.Service,
	checkoutSvc *appcheckout.Service,
	orderSvc *apporder.Service,
	tel observability.Observability,
) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	return &Handler{
		cartService:     cartSvc,
		checkoutService: checkoutSvc,
		orderService:    orderSvc,
		log:             tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:             tel,
	}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	h.muxHandle(mux, http.MethodPost, "/cart/items", h.handleAddItem)
	h.muxHandle(mux, http.MethodPut, "/cart/items", h.handleChangeQuantity)
	h.muxHandle(mux, http.MethodDelete, "/cart/items", h.handleRemoveItem)
	h.muxHandle(mux, http.MethodGet, "/cart", h.handleGetCart)
	h.muxHandle(mux, http.MethodPost, "/checkout", h.handleUserCheckout)
	h.muxHandle(mux, http.MethodPost, "/checkout/guest", h.handleGuestCheckout)
	h.muxHandle(mux, http.MethodGet, "/order", h.handleGetOrder)
	h.muxHandle(mux, http.MethodGet, "/health", h.handleHealth)

	return mux
}

type cartItemRequest struct {
	BuyerID   string `json:"buyer_id"`
	StoreID   string `json:"store_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.cartService.AddItem(r.Context(), req.BuyerID, req.StoreID, req.ProductID, req.Quantity); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleChangeQuantity(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.cartService.ChangeQuantity(r.Context(), req.BuyerID, req.StoreID, req.ProductID, req.Quantity); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.cartService.RemoveItem(r.Context(), req.BuyerID, req.StoreID, req.ProductID); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	buyerID := r.URL.Query().Get("buyer_id")
	if buyerID == "" {
		writeError(w, http.StatusBadRequest, errors.New("buyer_id is required"))
		return
	}
	c, err := h.cartService.Get(r.Context(), buyerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"baskets":    c.Baskets(),
		"item_count": c.TotalItemCount(),
	})
}

type userCheckoutRequest struct {
	BuyerID        string `json:"buyer_id"`
	PaymentMethod  string `json:"payment_method"`
	ShipmentMethod string `json:"shipment_method"`
}

type guestCheckoutRequest struct {
	Items []struct {
		StoreID   string `json:"store_id"`
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod  string `json:"payment_method"`
	ShipmentMethod string `json:"shipment_method"`
}

type receiptResponse struct {
	OrderIDs           []string          `json:"order_ids"`
	PaymentTransaction string            `json:"payment_transaction"`
	Tracking           map[string]string `json:"tracking"`
	TotalAmount        float64           `json:"total_amount"`
}

func (h *Handler) handleUserCheckout(w http.ResponseWriter, r *http.Request) {
	var req userCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	receipt, err := h.checkoutService.ProcessUserCheckout(r.Context(), req.BuyerID, appcheckout.Request{
		PaymentMethod:  req.PaymentMethod,
		ShipmentMethod: req.ShipmentMethod,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleGuestCheckout(w http.ResponseWriter, r *http.Request) {
	var req guestCheckoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c := domaincart.New()
	for _, item := range req.Items {
		if err := c.AddItem(item.StoreID, item.ProductID, item.Quantity); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	receipt, err := h.checkoutService.ProcessGuestCheckout(r.Context(), c, appcheckout.Request{
		PaymentMethod:  req.PaymentMethod,
		ShipmentMethod: req.ShipmentMethod,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, toReceiptResponse(receipt))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id is required"))
		return
	}
	o, err := h.orderService.Get(r.Context(), id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     o.ID,
		"store_id":     o.StoreID,
		"buyer":        o.Buyer.String(),
		"items":        o.Items(),
		"total_price":  o.TotalPrice,
		"final_price":  o.FinalPrice,
		"status":       o.Status,
		"payment_ref":  o.PaymentRef,
		"shipment_ref": o.ShipmentRef,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toReceiptResponse(receipt *appcheckout.Receipt) receiptResponse {
	return receiptResponse{
		OrderIDs:           receipt.OrderIDs,
		PaymentTransaction: receipt.PaymentTransaction,
		Tracking:           receipt.Tracking,
		TotalAmount:        receipt.TotalAmount,
	}
}

func statusFor(err error) int {
	var verr *apporder.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, appcheckout.ErrEmptyCart),
		errors.Is(err, domaincart.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domainorder.ErrNotFound),
		errors.Is(err, domaincart.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, appcheckout.ErrPaymentFailed),
		errors.Is(err, appcheckout.ErrSupplyFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
