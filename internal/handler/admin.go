package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

type promotionRequest struct {
	Name            string               `json:"name"`
	Description     string               `json:"description"`
	Type            promotion.Type       `json:"type"`
	Target          promotion.Target     `json:"target"`
	StartDate       time.Time            `json:"start_date"`
	EndDate         time.Time            `json:"end_date"`
	Conditions      promotion.Conditions `json:"conditions"`
	Rules           promotion.Rules      `json:"rules"`
	IsActive        bool                 `json:"is_active"`
	IsAutomatic     bool                 `json:"is_automatic"`
	Priority        int                  `json:"priority"`
	AutoApplyToCart bool                 `json:"auto_apply_to_cart"`
}

func (r promotionRequest) toDomain(id string) *promotion.Promotion {
	target := r.Target
	if target == "" {
		target = promotion.TargetAllProducts
	}
	return &promotion.Promotion{
		ID:              id,
		Name:            r.Name,
		Description:     r.Description,
		Type:            r.Type,
		Target:          target,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		Conditions:      r.Conditions,
		Rules:           r.Rules,
		IsActive:        r.IsActive,
		IsAutomatic:     r.IsAutomatic,
		Priority:        r.Priority,
		AutoApplyToCart: r.AutoApplyToCart,
	}
}

type promotionResponse struct {
	ID                 string               `json:"id"`
	Name               string               `json:"name"`
	Description        string               `json:"description,omitempty"`
	Type               promotion.Type       `json:"type"`
	Status             promotion.Status     `json:"status"`
	Target             promotion.Target     `json:"target"`
	StartDate          time.Time            `json:"start_date"`
	EndDate            time.Time            `json:"end_date"`
	Conditions         promotion.Conditions `json:"conditions"`
	Rules              promotion.Rules      `json:"rules"`
	TotalUses          int                  `json:"total_uses"`
	TotalDiscountGiven decimal.Decimal      `json:"total_discount_given"`
	ConversionCount    int                  `json:"conversion_count"`
	ViewCount          int                  `json:"view_count"`
	IsActive           bool                 `json:"is_active"`
	IsAutomatic        bool                 `json:"is_automatic"`
	Priority           int                  `json:"priority"`
	AutoApplyToCart    bool                 `json:"auto_apply_to_cart"`
	CreatedAt          time.Time            `json:"created_at"`
	UpdatedAt          time.Time            `json:"updated_at"`
}

func toPromotionResponse(p *promotion.Promotion) promotionResponse {
	return promotionResponse{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		Type:               p.Type,
		Status:             p.Status,
		Target:             p.Target,
		StartDate:          p.StartDate,
		EndDate:            p.EndDate,
		Conditions:         p.Conditions,
		Rules:              p.Rules,
		TotalUses:          p.TotalUses,
		TotalDiscountGiven: p.TotalDiscountGiven,
		ConversionCount:    p.ConversionCount,
		ViewCount:          p.ViewCount,
		IsActive:           p.IsActive,
		IsAutomatic:        p.IsAutomatic,
		Priority:           p.Priority,
		AutoApplyToCart:    p.AutoApplyToCart,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func (h *Handler) createPromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	p := req.toDomain("")
	if err := h.promotions.Create(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(p))
}

func (h *Handler) getPromotion(w http.ResponseWriter, r *http.Request) {
	p, err := h.promotions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) listPromotions(w http.ResponseWriter, r *http.Request) {
	filter := promotion.ListFilter{
		Status: promotion.Status(r.URL.Query().Get("status")),
		Type:   promotion.Type(r.URL.Query().Get("type")),
	}
	promos, err := h.promotions.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]promotionResponse, len(promos))
	for i, p := range promos {
		out[i] = toPromotionResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) updatePromotion(w http.ResponseWriter, r *http.Request) {
	var req promotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	p := req.toDomain(chi.URLParam(r, "id"))
	if err := h.promotions.Update(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) deletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := h.promotions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) transitionPromotion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status promotion.Status `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	p, err := h.promotions.Transition(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPromotionResponse(p))
}

func (h *Handler) recordPromotionView(w http.ResponseWriter, r *http.Request) {
	if err := h.promotions.RecordView(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type couponRequest struct {
	Code                  string          `json:"code"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	Type                  coupon.Type     `json:"type"`
	PromotionID           string          `json:"promotion_id"`
	MaxUses               int             `json:"max_uses"`
	MaxUsesPerUser        int             `json:"max_uses_per_user"`
	MinimumPurchaseAmount decimal.Decimal `json:"minimum_purchase_amount"`
	RequiresMinimumItems  bool            `json:"requires_minimum_items"`
	MinimumItems          int             `json:"minimum_items"`
	SpecificUserID        string          `json:"specific_user_id"`
	ValidFrom             time.Time       `json:"valid_from"`
	ValidUntil            time.Time       `json:"valid_until"`
}

type couponResponse struct {
	ID                 string          `json:"id"`
	Code               string          `json:"code"`
	Name               string          `json:"name,omitempty"`
	Type               coupon.Type     `json:"type"`
	Status             coupon.Status   `json:"status"`
	PromotionID        string          `json:"promotion_id"`
	MaxUses            int             `json:"max_uses"`
	MaxUsesPerUser     int             `json:"max_uses_per_user"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidUntil         time.Time       `json:"valid_until"`
	TotalUses          int             `json:"total_uses"`
	TotalDiscountGiven decimal.Decimal `json:"total_discount_given"`
	ViewCount          int             `json:"view_count"`
	AttemptCount       int             `json:"attempt_count"`
	SuccessCount       int             `json:"success_count"`
	FailureCount       int             `json:"failure_count"`
}

func toCouponResponse(c *coupon.Coupon) couponResponse {
	return couponResponse{
		ID:                 c.ID,
		Code:               c.Code,
		Name:               c.Name,
		Type:               c.Type,
		Status:             c.Status,
		PromotionID:        c.PromotionID,
		MaxUses:            c.MaxUses,
		MaxUsesPerUser:     c.MaxUsesPerUser,
		ValidFrom:          c.ValidFrom,
		ValidUntil:         c.ValidUntil,
		TotalUses:          c.TotalUses,
		TotalDiscountGiven: c.TotalDiscountGiven,
		ViewCount:          c.ViewCount,
		AttemptCount:       c.AttemptCount,
		SuccessCount:       c.SuccessCount,
		FailureCount:       c.FailureCount,
	}
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	now := time.Now()
	c := &coupon.Coupon{
		ID:                    uuid.New().String(),
		Code:                  coupon.NormalizeCode(req.Code),
		Name:                  req.Name,
		Description:           req.Description,
		Type:                  req.Type,
		Status:                coupon.StatusActive,
		PromotionID:           req.PromotionID,
		MaxUses:               req.MaxUses,
		MaxUsesPerUser:        req.MaxUsesPerUser,
		MinimumPurchaseAmount: req.MinimumPurchaseAmount,
		RequiresMinimumItems:  req.RequiresMinimumItems,
		MinimumItems:          req.MinimumItems,
		SpecificUserID:        req.SpecificUserID,
		ValidFrom:             req.ValidFrom,
		ValidUntil:            req.ValidUntil,
		IsActive:              true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := c.Validate(); err != nil {
		writeError(w, err)
		return
	}

	// The coupon must reference an existing promotion.
	if _, err := h.promotions.Get(r.Context(), c.PromotionID); err != nil {
		writeError(w, err)
		return
	}

	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCouponResponse(c))
}

type bulkCouponRequest struct {
	Count          int         `json:"count"`
	Prefix         string      `json:"prefix"`
	PromotionID    string      `json:"promotion_id"`
	Name           string      `json:"name"`
	Type           coupon.Type `json:"type"`
	MaxUses        int         `json:"max_uses"`
	MaxUsesPerUser int         `json:"max_uses_per_user"`
	ValidFrom      time.Time   `json:"valid_from"`
	ValidUntil     time.Time   `json:"valid_until"`
}

func (h *Handler) bulkGenerateCoupons(w http.ResponseWriter, r *http.Request) {
	var req bulkCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "malformed request body")
		return
	}

	if _, err := h.promotions.Get(r.Context(), req.PromotionID); err != nil {
		writeError(w, err)
		return
	}

	created, err := h.generator.Generate(r.Context(), coupon.BatchRequest{
		Count:          req.Count,
		Prefix:         coupon.NormalizeCode(req.Prefix),
		PromotionID:    req.PromotionID,
		Name:           req.Name,
		Type:           req.Type,
		MaxUses:        req.MaxUses,
		MaxUsesPerUser: req.MaxUsesPerUser,
		ValidFrom:      req.ValidFrom,
		ValidUntil:     req.ValidUntil,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	codes := make([]string, len(created))
	for i, c := range created {
		codes[i] = c.Code
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"requested": req.Count,
		"created":   len(created),
		"codes":     codes,
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	filter := coupon.ListFilter{
		Status:      coupon.Status(r.URL.Query().Get("status")),
		PromotionID: r.URL.Query().Get("promotion_id"),
	}
	coupons, err := h.coupons.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]couponResponse, len(coupons))
	for i, c := range coupons {
		out[i] = toCouponResponse(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.GetByCode(r.Context(), coupon.NormalizeCode(chi.URLParam(r, "code")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCouponResponse(c))
}

func (h *Handler) recordCouponView(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.IncrementViews(r.Context(), coupon.NormalizeCode(chi.URLParam(r, "code"))); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
