package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridianpay/capture/internal/billing"
	"github.com/meridianpay/capture/internal/capture"
	"github.com/meridianpay/capture/internal/database"
	"github.com/meridianpay/capture/internal/money"
)

// maxIdempotencyKeyLen matches the column width of the idempotency key.
const maxIdempotencyKeyLen = 255

// maxAmount bounds amounts to 12 digits with 2 decimal places.
var maxAmount = decimal.New(1, 10)

// splitPayload is one split as received on the wire.
type splitPayload struct {
	RecipientID string          `json:"recipient_id"`
	Role        string          `json:"role"`
	Percent     decimal.Decimal `json:"percent"`
}

// paymentPayload is the capture request body. Amount and percents bind from
// both JSON strings and bare numbers. A nil installments defaults to 1.
type paymentPayload struct {
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	PaymentMethod string          `json:"payment_method"`
	Installments  *int            `json:"installments"`
	Splits        []splitPayload  `json:"splits"`
}

// validateSchema applies the wire-level field checks that run before any
// business rule: decimal shape, field lengths and the payment method choice.
// Returns one message per offending field.
func (p *paymentPayload) validateSchema() map[string]string {
	errs := make(map[string]string)

	if p.Amount.Exponent() < -2 {
		errs["amount"] = "Ensure that there are no more than 2 decimal places."
	} else if p.Amount.Abs().GreaterThanOrEqual(maxAmount) {
		errs["amount"] = "Ensure that there are no more than 12 digits in total."
	}

	if len(p.Currency) > 3 {
		errs["currency"] = "Ensure this field has no more than 3 characters."
	}

	switch billing.Method(p.PaymentMethod) {
	case billing.MethodPix, billing.MethodCard:
	default:
		errs["payment_method"] = fmt.Sprintf("%q is not a valid choice.", p.PaymentMethod)
	}

	for i, s := range p.Splits {
		if s.RecipientID == "" {
			errs[fmt.Sprintf("splits[%d].recipient_id", i)] = "This field may not be blank."
		} else if len(s.RecipientID) > 255 {
			errs[fmt.Sprintf("splits[%d].recipient_id", i)] = "Ensure this field has no more than 255 characters."
		}
		if s.Role == "" {
			errs[fmt.Sprintf("splits[%d].role", i)] = "This field may not be blank."
		} else if len(s.Role) > 50 {
			errs[fmt.Sprintf("splits[%d].role", i)] = "Ensure this field has no more than 50 characters."
		}
		if s.Percent.Exponent() < -2 {
			errs[fmt.Sprintf("splits[%d].percent", i)] = "Ensure that there are no more than 2 decimal places."
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// toDomain converts the wire payload into a capture request. Only valid after
// validateSchema passed.
func (p *paymentPayload) toDomain() billing.CaptureRequest {
	installments := 1
	if p.Installments != nil {
		installments = *p.Installments
	}

	splits := make([]billing.SplitInput, len(p.Splits))
	for i, s := range p.Splits {
		splits[i] = billing.SplitInput{
			RecipientID: s.RecipientID,
			Role:        s.Role,
			Percent:     s.Percent,
		}
	}

	return billing.CaptureRequest{
		Amount:       money.FromCents(p.Amount.Shift(2).IntPart()),
		Currency:     p.Currency,
		Method:       billing.Method(p.PaymentMethod),
		Installments: installments,
		Splits:       splits,
	}
}

// bindPaymentPayload decodes and schema-checks the request body. On failure
// it writes the 400 response and returns false.
func bindPaymentPayload(c *gin.Context, payload *paymentPayload) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Malformed request body.",
		})
		return false
	}

	if errs := payload.validateSchema(); errs != nil {
		c.JSON(http.StatusBadRequest, errs)
		return false
	}

	return true
}

// handleCreatePayment handles POST /payments requests
func (s *Server) handleCreatePayment(c *gin.Context) {
	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Idempotency-Key header is required.",
		})
		return
	}
	if len(key) > maxIdempotencyKeyLen {
		c.JSON(http.StatusBadRequest, gin.H{
			"detail": "Idempotency-Key header must not exceed 255 characters.",
		})
		return
	}

	var payload paymentPayload
	if !bindPaymentPayload(c, &payload) {
		return
	}

	body, err := s.coordinator.Process(c.Request.Context(), payload.toDomain(), key)
	if err != nil {
		s.writeCaptureError(c, key, err)
		return
	}

	// The stored body is returned verbatim so replays are byte-identical to
	// what the coordinator produced.
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// writeCaptureError maps capture failures onto the API error contract.
func (s *Server) writeCaptureError(c *gin.Context, key string, err error) {
	var verr *billing.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, verr.Fields)
		return
	}

	switch {
	case errors.Is(err, capture.ErrIdempotencyConflict):
		c.JSON(http.StatusConflict, gin.H{
			"detail": "Idempotency-Key already used with a different payload.",
		})
	case errors.Is(err, capture.ErrDuplicateInFlight):
		c.JSON(http.StatusConflict, gin.H{
			"detail": "A concurrent request with this Idempotency-Key is still being processed.",
		})
	default:
		s.log.Error("Failed to process payment", "idempotency_key", key, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to process payment",
		})
	}
}

// handleQuotePayment handles POST /payments/quote requests
func (s *Server) handleQuotePayment(c *gin.Context) {
	var payload paymentPayload
	if !bindPaymentPayload(c, &payload) {
		return
	}

	quote, err := s.coordinator.Quote(payload.toDomain())
	if err != nil {
		var verr *billing.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, verr.Fields)
			return
		}
		s.log.Error("Failed to quote payment", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to quote payment",
		})
		return
	}

	c.JSON(http.StatusOK, quote)
}

// paymentDetail is the cached shape of a payment and its ledger rows.
type paymentDetail struct {
	Payment database.Payment       `json:"payment"`
	Entries []database.LedgerEntry `json:"entries"`
}

// handleGetPayment handles GET /payments/:id requests
func (s *Server) handleGetPayment(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Payment not found.",
		})
		return
	}

	// Try cache first; captured payments and their ledgers are immutable
	cacheKey := "payment:" + id
	if s.cache != nil {
		var detail paymentDetail
		if err := s.cache.GetJSON(c.Request.Context(), cacheKey, &detail); err == nil {
			c.JSON(http.StatusOK, gin.H{
				"payment": detail.Payment,
				"entries": detail.Entries,
				"cached":  true,
			})
			return
		}
	}

	payment, err := s.db.GetPaymentByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{
				"detail": "Payment not found.",
			})
			return
		}
		s.log.Error("Failed to get payment", "payment_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch payment",
		})
		return
	}

	entries, err := s.db.GetLedgerEntries(c.Request.Context(), id)
	if err != nil {
		s.log.Error("Failed to get ledger entries", "payment_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch payment",
		})
		return
	}

	if s.cache != nil {
		s.cache.SetJSON(c.Request.Context(), cacheKey, paymentDetail{Payment: *payment, Entries: entries}, time.Hour)
	}

	c.JSON(http.StatusOK, gin.H{
		"payment": payment,
		"entries": entries,
	})
}

// handleListPayments handles GET /payments requests
func (s *Server) handleListPayments(c *gin.Context) {
	page := parseQueryInt(c, "page", 1)
	limit := parseQueryInt(c, "limit", 20)

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := (page - 1) * limit

	payments, total, err := s.db.ListPayments(c.Request.Context(), limit, offset)
	if err != nil {
		s.log.Error("Failed to list payments", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch payments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments": payments,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

// handleGetPaymentLedger handles GET /payments/:id/ledger requests
func (s *Server) handleGetPaymentLedger(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"detail": "Payment not found.",
		})
		return
	}

	if _, err := s.db.GetPaymentByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{
				"detail": "Payment not found.",
			})
			return
		}
		s.log.Error("Failed to get payment", "payment_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch payment",
		})
		return
	}

	entries, err := s.db.GetLedgerEntries(c.Request.Context(), id)
	if err != nil {
		s.log.Error("Failed to get ledger entries", "payment_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch ledger entries",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payment_id": id,
		"entries":    entries,
	})
}
