// Package handler exposes the discount engine over HTTP: cart evaluation,
// coupon dry-run validation, the order-completion hook, and the thin
// administration surface. Handlers only translate between JSON and the
// domain; all decisions live in the domain packages.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/checkout"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/coupon"
	"github.com/SoftDevDigital/backend-nabra-xr1-sub001/internal/domain/promotion"
)

// Handler bundles the engine's HTTP endpoints.
type Handler struct {
	orchestrator *checkout.Orchestrator
	validator    *coupon.Validator
	recorder     *checkout.Recorder
	promotions   *promotion.Service
	coupons      coupon.Repository
	generator    *coupon.Generator
}

// New constructs a Handler with the required domain dependencies.
func New(
	orchestrator *checkout.Orchestrator,
	validator *coupon.Validator,
	recorder *checkout.Recorder,
	promotions *promotion.Service,
	coupons coupon.Repository,
	generator *coupon.Generator,
) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		validator:    validator,
		recorder:     recorder,
		promotions:   promotions,
		coupons:      coupons,
		generator:    generator,
	}
}

// Routes mounts every endpoint on a chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Post("/discounts/apply", h.applyDiscounts)
		r.Post("/coupons/validate", h.validateCoupon)
		r.Post("/orders/complete", h.completeOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/promotions", h.createPromotion)
			r.Get("/promotions", h.listPromotions)
			r.Get("/promotions/{id}", h.getPromotion)
			r.Put("/promotions/{id}", h.updatePromotion)
			r.Delete("/promotions/{id}", h.deletePromotion)
			r.Post("/promotions/{id}/status", h.transitionPromotion)
			r.Post("/promotions/{id}/views", h.recordPromotionView)

			r.Post("/coupons", h.createCoupon)
			r.Post("/coupons/bulk", h.bulkGenerateCoupons)
			r.Get("/coupons", h.listCoupons)
			r.Get("/coupons/{code}", h.getCoupon)
			r.Post("/coupons/{code}/views", h.recordCouponView)
		})
	})

	return r
}
