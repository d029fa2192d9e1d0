package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/reisinl/veg-shop/internal/entity"
)

type ErrorResponse struct {
	Error     string           `json:"error"`
	Message   string           `json:"message,omitempty"`
	ItemID    int64            `json:"item_id,omitempty"`
	Available *decimal.Decimal `json:"available,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

var errorCodes = []struct {
	target error
	status int
	code   string
}{
	{entity.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
	{entity.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{entity.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{entity.ErrEmptyOrder, http.StatusBadRequest, "empty_order"},
	{entity.ErrCustomerRequired, http.StatusBadRequest, "customer_required"},
	{entity.ErrInvalidStatus, http.StatusBadRequest, "invalid_status"},
	{entity.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{entity.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{entity.ErrForbidden, http.StatusForbidden, "forbidden"},
	{entity.ErrNotFound, http.StatusNotFound, "not_found"},
	{entity.ErrOrderNotPending, http.StatusConflict, "order_not_pending"},
	{entity.ErrOrderHasPayments, http.StatusConflict, "order_has_payments"},
	{entity.ErrStockConflict, http.StatusConflict, "stock_conflict"},
	{entity.ErrVersionConflict, http.StatusConflict, "version_conflict"},
	{entity.ErrDuplicate, http.StatusConflict, "duplicate"},
	{entity.ErrCreditBlocked, http.StatusUnprocessableEntity, "credit_blocked"},
	{entity.ErrOwingExceeded, http.StatusUnprocessableEntity, "owing_exceeded"},
	{entity.ErrUnknownBoxSize, http.StatusUnprocessableEntity, "unknown_box_size"},
	{entity.ErrPaymentMethodInvalid, http.StatusUnprocessableEntity, "payment_method_invalid"},
	{entity.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{entity.ErrModeMismatch, http.StatusUnprocessableEntity, "mode_mismatch"},
}

// writeServiceError maps a use case error onto a status code. Anything not
// recognised is logged and hidden behind a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var stock *entity.InsufficientStockError
	if errors.As(err, &stock) {
		available := stock.Available
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:     "insufficient_stock",
			Message:   stock.Error(),
			ItemID:    stock.ItemID,
			Available: &available,
		})
		return
	}

	for _, c := range errorCodes {
		if errors.Is(err, c.target) {
			writeError(w, c.status, c.code, c.target.Error())
			return
		}
	}

	slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
