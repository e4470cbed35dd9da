package web

import "net/http"

func (h *Handler) handleEmployeeDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "employee_dashboard", &Page{Title: "Panel"})
}
