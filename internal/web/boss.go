package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/billing"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	bossDashboardPath = "/dashboard/admin"
	businessesPath    = "/dashboard/admin/negocios/"
	upgradePlanPath   = "/dashboard/upgrade-plan"
	noBusinesses      = "No se encontraron negocios para este usuario."
)

type bossDashboardData struct {
	Businesses []backend.Business
	Empty      string
}

type businessFormData struct {
	Editing    bool
	Action     string
	Categories []string
}

type businessDetailData struct {
	Business *backend.Business
}

type plansData struct {
	Plans []billing.Plan
}

func businessPath(id string) string {
	return businessesPath + url.PathEscape(id)
}

// handleDashboard sends the user to the dashboard of their role.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.basePath+h.session(r).Role().DashboardPath(), http.StatusFound)
}

func (h *Handler) handleBossDashboard(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	if s.User.NeedsProfile() {
		h.flash(r, session.FlashInfo, "Debes actualizar tu perfil para continuar.")
		h.redirect(w, r, bossDashboardPath+"/perfil")
		return
	}

	data := bossDashboardData{Empty: noBusinesses}
	businesses, err := h.api.ListBusinesses(h.apiContext(r))
	switch {
	case backend.StatusCode(err) == http.StatusNotFound:
		// the API answers 404 when the owner has no business yet
	case err != nil:
		log.Errorf("list businesses: %s", err)
		h.flash(r, session.FlashError, "Error al cargar la lista de negocios.")
	default:
		data.Businesses = businesses
	}

	h.render(w, r, http.StatusOK, "boss_dashboard", &Page{Title: "Mis negocios", Data: data})
}

func (h *Handler) handleBusinessNewPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "business_form", &Page{
		Title: "Nuevo negocio",
		Data: businessFormData{
			Action:     "/dashboard/admin/negocios",
			Categories: businessCategories,
		},
	})
}

func (h *Handler) handleBusinessCreate(w http.ResponseWriter, r *http.Request) {
	page := &Page{
		Title: "Nuevo negocio",
		Data: businessFormData{
			Action:     "/dashboard/admin/negocios",
			Categories: businessCategories,
		},
	}

	form := &businessForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "business_form", page, form, err)
		return
	}

	logo, closeLogo, err := formUpload(r, "logo")
	if err != nil {
		h.badForm(w, err)
		return
	}
	defer closeLogo()

	owner := h.session(r).User
	if _, err := h.api.CreateBusiness(h.apiContext(r), owner.Email, form.input(), logo); err != nil {
		h.flashAPIError(r, err, "Error al registrar el negocio.")
		page.Form = formValues(form)
		h.render(w, r, http.StatusUnprocessableEntity, "business_form", page)
		return
	}

	h.flash(r, session.FlashSuccess, "Negocio registrado exitosamente.")
	h.redirect(w, r, bossDashboardPath)
}

func (h *Handler) handleBusinessDetail(w http.ResponseWriter, r *http.Request) {
	business, err := h.api.BusinessDetail(h.apiContext(r), mux.Vars(r)["id"])
	if err != nil {
		log.Errorf("business detail: %s", err)
		h.flashAPIError(r, err, "Error al cargar el detalle del negocio.")
		h.redirect(w, r, bossDashboardPath)
		return
	}

	h.render(w, r, http.StatusOK, "business_detail", &Page{
		Title: business.CompanyName,
		Data:  businessDetailData{Business: business},
	})
}

func (h *Handler) handleBusinessEditPage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	business, err := h.api.BusinessDetail(h.apiContext(r), id)
	if err != nil {
		log.Errorf("business detail for edit: %s", err)
		h.flashAPIError(r, err, "Error al cargar el negocio para editar.")
		h.redirect(w, r, bossDashboardPath)
		return
	}

	h.render(w, r, http.StatusOK, "business_form", &Page{
		Title: "Editar negocio",
		Form: formValues(businessForm{
			CompanyName:  business.CompanyName,
			RUC:          business.RUC,
			Categoria:    business.Categoria,
			Telefono:     business.Telefono,
			Direccion:    business.Direccion,
			EmailNegocio: business.EmailNegocio,
			Descripcion:  business.Descripcion,
		}),
		Data: businessFormData{
			Editing:    true,
			Action:     businessPath(id),
			Categories: businessCategories,
		},
	})
}

func (h *Handler) handleBusinessUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	page := &Page{
		Title: "Editar negocio",
		Data: businessFormData{
			Editing:    true,
			Action:     businessPath(id),
			Categories: businessCategories,
		},
	}

	form := &businessForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "business_form", page, form, err)
		return
	}

	logo, closeLogo, err := formUpload(r, "logo")
	if err != nil {
		h.badForm(w, err)
		return
	}
	defer closeLogo()

	if _, err := h.api.UpdateBusiness(h.apiContext(r), id, form.input(), logo); err != nil {
		h.flashAPIError(r, err, "Error al actualizar el negocio.")
		page.Form = formValues(form)
		h.render(w, r, http.StatusUnprocessableEntity, "business_form", page)
		return
	}

	h.flash(r, session.FlashSuccess, "Negocio actualizado exitosamente.")
	h.redirect(w, r, businessPath(id))
}

// backToBusiness returns to the business the form was posted from.
func (h *Handler) backToBusiness(w http.ResponseWriter, r *http.Request) {
	if id := r.PostForm.Get("business"); id != "" {
		h.redirect(w, r, businessPath(id))
		return
	}
	h.redirect(w, r, bossDashboardPath)
}

func (h *Handler) handleInviteEmployee(w http.ResponseWriter, r *http.Request) {
	form := &inviteForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		var fieldErrors validation.FieldErrors
		if errors.As(err, &fieldErrors) {
			for _, field := range []string{"companyCode", "email"} {
				if fieldErrors.Has(field) {
					h.flash(r, session.FlashError, fieldErrors[field])
					break
				}
			}
		}
		h.backToBusiness(w, r)
		return
	}

	owner := h.session(r).User
	resp, err := h.api.AddEmployee(h.apiContext(r), backend.InviteEmployee{
		EmailEmpleado: validation.NormalizeEmail(form.Email),
		EmailJefe:     owner.Email,
		CompanyCode:   validation.NormalizeCompanyCode(form.CompanyCode),
	})
	if err != nil {
		h.flashAPIError(r, err, "Error al invitar al empleado.")
		h.backToBusiness(w, r)
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Empleado invitado exitosamente"))
	h.backToBusiness(w, r)
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badForm(w, err)
		return
	}

	resp, err := h.api.DeleteEmployee(h.apiContext(r), mux.Vars(r)["id"])
	if err != nil {
		h.flashAPIError(r, err, "Error al eliminar el empleado.")
		h.backToBusiness(w, r)
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Empleado eliminado exitosamente"))
	h.backToBusiness(w, r)
}

func (h *Handler) handleUpgradePlan(w http.ResponseWriter, r *http.Request) {
	plans := billing.Catalogue()
	resp, err := h.api.Plans(h.apiContext(r))
	if err != nil {
		log.Errorf("load plans: %s", err)
		h.flash(r, session.FlashError, "Hubo un error al cargar los planes.")
	} else {
		plans = billing.MergePrices(plans, resp.Prices.Data)
	}

	h.render(w, r, http.StatusOK, "upgrade_plan", &Page{Title: "Planes", Data: plansData{Plans: plans}})
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.badForm(w, err)
		return
	}
	priceID := r.PostForm.Get("priceId")
	if priceID == "" {
		h.flash(r, session.FlashError, billing.ErrNoCheckoutURL.Error())
		h.redirect(w, r, upgradePlanPath)
		return
	}

	resp, err := h.api.Checkout(h.apiContext(r), priceID)
	if err != nil {
		log.Errorf("checkout price [%s]: %s", priceID, err)
		h.flash(r, session.FlashError, "Error al procesar el pago.")
		h.redirect(w, r, upgradePlanPath)
		return
	}

	checkoutURL, err := billing.CheckoutURL(resp)
	if err != nil {
		h.flash(r, session.FlashError, err.Error())
		h.redirect(w, r, upgradePlanPath)
		return
	}

	http.Redirect(w, r, checkoutURL, http.StatusSeeOther)
}

func (h *Handler) handlePaymentResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result := billing.ParsePaymentResult(q.Get("success"), q.Get("canceled"))
	switch result {
	case billing.PaymentSuccess:
		h.flash(r, session.FlashSuccess, result.Message())
		h.redirect(w, r, bossDashboardPath)
	case billing.PaymentCanceled:
		h.flash(r, session.FlashInfo, result.Message())
		h.redirect(w, r, upgradePlanPath)
	default:
		h.redirect(w, r, upgradePlanPath)
	}
}
