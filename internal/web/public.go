package web

import (
	"net/http"

	"github.com/centinelapos/webapp/internal/billing"
	"github.com/centinelapos/webapp/internal/leads"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"

	log "github.com/sirupsen/logrus"
)

const (
	contactThanks     = "¡Gracias por contactarnos! Nos pondremos en contacto pronto."
	newsletterThanks  = "¡Gracias por suscribirte! Pronto recibirás nuestras novedades."
	alreadySubscribed = "Este correo ya está suscrito a nuestras novedades."
)

type homeData struct {
	Plans []billing.Plan
}

func homePage() *Page {
	return &Page{
		Data: homeData{Plans: billing.Catalogue()},
	}
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home", homePage())
}

func (h *Handler) handleContact(w http.ResponseWriter, r *http.Request) {
	form := &contactForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "home", homePage(), form, err)
		return
	}

	msg := &leads.ContactMessage{
		Name:      validation.NormalizeName(form.Name),
		Email:     validation.NormalizeEmail(form.Email),
		Phone:     validation.DigitsOnly(form.Phone),
		Message:   form.Message,
		CreatedAt: h.Now(),
	}
	if _, err := h.leadsRepo.AddContact(r.Context(), msg); err != nil {
		log.Errorf("add contact message from [%s]: %s", msg.Email, err)
		h.flash(r, session.FlashError, "No pudimos enviar tu mensaje. Inténtalo de nuevo más tarde.")
		h.redirect(w, r, "/#contacto")
		return
	}

	h.countLead("contact")
	h.flash(r, session.FlashSuccess, contactThanks)
	h.redirect(w, r, "/")
}

func (h *Handler) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	form := &newsletterForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "home", homePage(), form, err)
		return
	}

	added, err := h.leadsRepo.Subscribe(r.Context(), leads.Subscription{
		Email:     validation.NormalizeEmail(form.Email),
		CreatedAt: h.Now(),
	})
	if err != nil {
		log.Errorf("newsletter subscribe: %s", err)
		h.flash(r, session.FlashError, "No pudimos completar tu suscripción. Inténtalo de nuevo más tarde.")
		h.redirect(w, r, "/")
		return
	}

	if added {
		h.countLead("newsletter")
		h.flash(r, session.FlashSuccess, newsletterThanks)
	} else {
		h.flash(r, session.FlashInfo, alreadySubscribed)
	}
	h.redirect(w, r, "/")
}

func (h *Handler) countLead(kind string) {
	if h.metrics == nil {
		return
	}
	h.metrics.CounterLeads.WithLabelValues(kind).Inc()
}
