package handlers

import (
	"net/http"

	"plazza/internal/manager"
)

// StatusResponse mirrors the rows manager.DisplayStatus prints to the
// reception console, serialized for the admin HTTP surface.
type StatusResponse struct {
	Kitchens []KitchenStatus `json:"kitchens"`
}

// KitchenStatus is one kitchen's row in StatusResponse.
type KitchenStatus struct {
	KitchenID  uint32 `json:"kitchen_id"`
	BusyCooks  uint32 `json:"busy_cooks"`
	TotalCooks uint32 `json:"total_cooks"`
	Pending    uint32 `json:"pending_pizzas"`
	Active     bool   `json:"active"`
}

// StatusHandler serves the current kitchen table.
type StatusHandler struct {
	mgr *manager.Manager
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(mgr *manager.Manager) *StatusHandler {
	return &StatusHandler{mgr: mgr}
}

// Handle serves GET /api/v1/status.
func (h *StatusHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var response StatusResponse
	h.mgr.DisplayStatus(r.Context(), func(rows []manager.StatusRow) {
		response.Kitchens = make([]KitchenStatus, 0, len(rows))
		for _, row := range rows {
			response.Kitchens = append(response.Kitchens, KitchenStatus{
				KitchenID:  row.KitchenID,
				BusyCooks:  row.Busy,
				TotalCooks: row.Total,
				Pending:    row.Pending,
				Active:     row.Active,
			})
		}
	})

	respondWithJSON(w, http.StatusOK, response)
}
