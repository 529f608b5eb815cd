// Package http provides http transport for analyses
package http

import (
	stdhttp "net/http"

	"seochecker/internal/modkit/httpkit"
	"seochecker/internal/services/analysis/domain"
	svc "seochecker/internal/services/analysis/service"
)

// Register mounts the routes
func Register(r httpkit.Router, s svc.Service) {
	h := &handlers{svc: s}
	httpkit.PostJSON[domain.SubmitInput](r, "/", h.submit)
	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/{id}", h.status)
	httpkit.Get(r, "/{id}/results", h.results)
	httpkit.Post(r, "/{id}/evaluate", h.evaluate)
}

type handlers struct{ svc svc.Service }

// swagger:route POST /analyses Analyses submit
// @Summary Submit a batch of domains for analysis
// @Tags analyses
// @Accept json
// @Produce json
// @Param payload body domain.SubmitInput true "Batch"
// @Success 201 {object} domain.StatusView "pending"
// @Failure 400 {object} httpkit.Envelope "invalid input"
// @Failure 503 {object} httpkit.Envelope "shutting down"
// @Router /analyses [post]
func (h *handlers) submit(r *stdhttp.Request, in domain.SubmitInput) (any, error) {
	v, err := h.svc.Submit(r.Context(), in)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(v), nil
}

// swagger:route GET /analyses Analyses list
// @Summary List analyses, newest first
// @Tags analyses
// @Produce json
// @Success 200 {array} domain.StatusView "ok"
// @Router /analyses [get]
func (h *handlers) list(r *stdhttp.Request) (any, error) {
	return h.svc.List(r.Context())
}

// swagger:route GET /analyses/{id} Analyses status
// @Summary Progress of one analysis
// @Tags analyses
// @Produce json
// @Param id path string true "Analysis id"
// @Success 200 {object} domain.StatusView "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /analyses/{id} [get]
func (h *handlers) status(r *stdhttp.Request) (any, error) {
	return h.svc.Status(r.Context(), httpkit.Param(r, "id"))
}

// swagger:route GET /analyses/{id}/results Analyses results
// @Summary Scored results per domain
// @Tags analyses
// @Produce json
// @Param id path string true "Analysis id"
// @Success 200 {array} domain.DomainResult "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /analyses/{id}/results [get]
func (h *handlers) results(r *stdhttp.Request) (any, error) {
	return h.svc.Results(r.Context(), httpkit.Param(r, "id"))
}

// swagger:route POST /analyses/{id}/evaluate Analyses evaluate
// @Summary Re-score a finished analysis from stored metrics
// @Tags analyses
// @Produce json
// @Param id path string true "Analysis id"
// @Success 200 {array} domain.DomainResult "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Failure 409 {object} httpkit.Envelope "still running"
// @Router /analyses/{id}/evaluate [post]
func (h *handlers) evaluate(r *stdhttp.Request) (any, error) {
	return h.svc.Evaluate(r.Context(), httpkit.Param(r, "id"))
}
