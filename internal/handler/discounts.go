package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/cart"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/checkout"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
)

type cartItemRequest struct {
	ProductID string          `json:"product_id"`
	LineID    string          `json:"line_id"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

func (c cartRequest) snapshot() cart.Snapshot {
	items := make([]cart.Item, len(c.Items))
	for i, item := range c.Items {
		items[i] = cart.Item{
			ProductID: item.ProductID,
			LineID:    item.LineID,
			Category:  item.Category,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return cart.Snapshot{Items: items, Total: c.Total}
}

type applyDiscountsRequest struct {
	UserID     string      `json:"user_id"`
	CouponCode string      `json:"coupon_code"`
	Cart       cartRequest `json:"cart"`
}

// applyDiscounts evaluates every applicable rule for the cart and returns
// the resolved discount result.
func (h *Handler) applyDiscounts(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if len(req.Cart.Items) == 0 {
		writeBadRequest(w, "cart items required")
		return
	}

	result, err := h.orchestrator.ApplyDiscounts(r.Context(), req.UserID, req.Cart.snapshot(), req.CouponCode)
	if err != nil {
		writeError(w, err)
		return
	}

	writeEncodable(w, http.StatusOK, discountResult{result})
}

type validateCouponRequest struct {
	Code   string      `json:"code"`
	UserID string      `json:"user_id"`
	Cart   cartRequest `json:"cart"`
}

// validateCoupon is the dry-run entry point: same predicates as redemption,
// no state mutation, structured verdict.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if req.Code == "" {
		writeBadRequest(w, "coupon code required")
		return
	}

	verdict, err := h.validator.DryRun(r.Context(), req.Code, req.UserID, req.Cart.snapshot())
	if err != nil {
		writeError(w, err)
		return
	}

	writeEncodable(w, http.StatusOK, couponVerdict{verdict})
}

type completeOrderRequest struct {
	OrderID        string          `json:"order_id"`
	UserID         string          `json:"user_id"`
	PromotionID    string          `json:"promotion_id"`
	CouponCode     string          `json:"coupon_code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// completeOrder is the order collaborator's signal that a discounted order
// finished; it triggers the usage recorder.
func (h *Handler) completeOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}
	if req.OrderID == "" || req.PromotionID == "" {
		writeBadRequest(w, "order_id and promotion_id required")
		return
	}

	err := h.recorder.Record(r.Context(), checkout.CompletedOrder{
		OrderID:        req.OrderID,
		UserID:         req.UserID,
		PromotionID:    req.PromotionID,
		CouponCode:     req.CouponCode,
		DiscountAmount: req.DiscountAmount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// discountResult wraps checkout.Result with a jx encoder.
type discountResult struct {
	*checkout.Result
}

func (r discountResult) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("success")
	e.Bool(r.Success)
	e.FieldStart("original_total")
	e.Str(r.OriginalTotal.StringFixed(2))
	e.FieldStart("total_discount")
	e.Str(r.TotalDiscount.StringFixed(2))
	e.FieldStart("final_total")
	e.Str(r.FinalTotal.StringFixed(2))
	e.FieldStart("savings")
	e.Str(r.Savings.StringFixed(2))
	e.FieldStart("free_shipping")
	e.Bool(r.FreeShipping)

	e.FieldStart("applied")
	e.ArrStart()
	for _, d := range r.Applied {
		encodeApplied(e, d)
	}
	e.ArrEnd()

	encodeStrings(e, "errors", r.Errors)
	encodeStrings(e, "warnings", r.Warnings)
	e.ObjEnd()
}

func encodeApplied(e *jx.Encoder, d checkout.AppliedDiscount) {
	e.ObjStart()
	e.FieldStart("promotion_id")
	e.Str(d.PromotionID)
	e.FieldStart("name")
	e.Str(d.Name)
	e.FieldStart("type")
	e.Str(string(d.Type))
	e.FieldStart("amount")
	e.Str(d.Amount.StringFixed(2))
	if d.CouponCode != "" {
		e.FieldStart("coupon_code")
		e.Str(d.CouponCode)
	}
	e.FieldStart("description")
	e.Str(d.Description)
	encodeStrings(e, "affected_line_ids", d.AffectedLineIDs)
	if d.FreeShipping {
		e.FieldStart("free_shipping")
		e.Bool(true)
	}
	e.ObjEnd()
}

func encodeStrings(e *jx.Encoder, field string, values []string) {
	e.FieldStart(field)
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

// couponVerdict wraps coupon.Verdict with a jx encoder.
type couponVerdict struct {
	*coupon.Verdict
}

func (v couponVerdict) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(v.Valid)
	if v.Reason != "" {
		e.FieldStart("reason")
		e.Str(string(v.Reason))
	}
	e.FieldStart("message")
	e.Str(v.Message)
	if v.Coupon != nil {
		e.FieldStart("coupon_code")
		e.Str(v.Coupon.Code)
	}
	if v.Promotion != nil {
		e.FieldStart("promotion_id")
		e.Str(v.Promotion.ID)
		e.FieldStart("discount")
		e.Str(v.Discount.StringFixed(2))
	}
	e.ObjEnd()
}
