package web

import (
	"net/http"

	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/leads"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	adminDashboardPath = "/admin/dashboard"
	recentContacts     = 20
)

type adminDashboardData struct {
	Admins   []backend.Admin
	Bosses   []backend.Boss
	Contacts []leads.ContactMessage
}

type adminDetailData struct {
	Admin *backend.Admin
}

type bossDetailData struct {
	Boss *backend.Boss
}

func (h *Handler) adminDashboardPage(r *http.Request) *Page {
	ctx := h.apiContext(r)
	data := adminDashboardData{}

	admins, adminsErr := h.api.ListAdmins(ctx)
	if adminsErr != nil {
		log.Errorf("list admins: %s", adminsErr)
		h.flashAPIError(r, adminsErr, "")
	}
	data.Admins = admins

	bosses, err := h.api.ListBosses(ctx)
	if err != nil {
		log.Errorf("list bosses: %s", err)
		h.flashAPIError(r, err, "")
	}
	data.Bosses = bosses

	// local leads are shown only once the API accepted the admin token
	if adminsErr == nil {
		contacts, err := h.leadsRepo.RecentContacts(r.Context(), recentContacts)
		if err != nil {
			log.Errorf("recent contact messages: %s", err)
		}
		data.Contacts = contacts
	}

	return &Page{Title: "Panel de Administrador", Data: data}
}

func (h *Handler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "admin_dashboard", h.adminDashboardPage(r))
}

func (h *Handler) handleAdminDetail(w http.ResponseWriter, r *http.Request) {
	admin, err := h.api.AdminDetail(h.apiContext(r), mux.Vars(r)["id"])
	if err != nil {
		h.flashAPIError(r, err, "")
		h.redirect(w, r, adminDashboardPath)
		return
	}
	h.render(w, r, http.StatusOK, "admin_detail", &Page{Title: admin.FullName(), Data: adminDetailData{Admin: admin}})
}

func (h *Handler) handleBossDetail(w http.ResponseWriter, r *http.Request) {
	boss, err := h.api.BossDetail(h.apiContext(r), mux.Vars(r)["id"])
	if err != nil {
		h.flashAPIError(r, err, "")
		h.redirect(w, r, adminDashboardPath)
		return
	}
	h.render(w, r, http.StatusOK, "boss_detail", &Page{Title: boss.FullName(), Data: bossDetailData{Boss: boss}})
}

func (h *Handler) handleDeactivateAdmin(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s := h.session(r); s.User != nil && s.User.ID == id {
		h.flash(r, session.FlashError, "No puedes desactivar tu propia cuenta.")
		h.redirect(w, r, adminDashboardPath)
		return
	}

	resp, err := h.api.DeactivateAdmin(h.apiContext(r), id)
	if err != nil {
		h.flashAPIError(r, err, "")
		h.redirect(w, r, adminDashboardPath)
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Administrador desactivado con éxito."))
	h.redirect(w, r, adminDashboardPath)
}

func (h *Handler) handleRegisterAdmin(w http.ResponseWriter, r *http.Request) {
	form := &registerAdminForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "admin_dashboard", h.adminDashboardPage(r), form, err)
		return
	}

	resp, err := h.api.RegisterAdmin(h.apiContext(r), backend.AdminRegistration{
		Nombres:   validation.NormalizeName(form.Nombres),
		Apellidos: validation.NormalizeName(form.Apellidos),
		Cedula:    validation.DigitsOnly(form.Cedula),
		Email:     validation.NormalizeEmail(form.Email),
	})
	if err != nil {
		h.flashAPIError(r, err, "")
		page := h.adminDashboardPage(r)
		page.Form = formValues(form)
		h.render(w, r, http.StatusUnprocessableEntity, "admin_dashboard", page)
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Administrador registrado con éxito. Se ha enviado un correo de confirmación."))
	h.redirect(w, r, adminDashboardPath)
}
