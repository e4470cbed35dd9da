package web

import (
	"errors"
	"net/http"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"

	log "github.com/sirupsen/logrus"
)

type profileData struct {
	ProfileAction  string
	PasswordAction string
	WithCedula     bool
	WithAdminCode  bool
}

// profileMessages are the success toasts of each role's profile screen.
var profileMessages = map[account.Role][2]string{
	account.RoleBoss:     {"Perfil actualizado con éxito!", "Contraseña actualizada con éxito!"},
	account.RoleEmployee: {"Perfil actualizado correctamente.", "Contraseña actualizada correctamente."},
	account.RoleAdmin:    {"Perfil actualizado con éxito.", "Contraseña actualizada con éxito."},
}

func profilePage(user *account.User) *Page {
	base := user.Rol.DashboardPath() + "/perfil"
	return &Page{
		Title: "Mi perfil",
		Form: formValues(profileForm{
			Nombres:   user.Nombres,
			Apellidos: user.Apellidos,
			Email:     user.Email,
			Cedula:    user.Cedula,
		}),
		Data: profileData{
			ProfileAction:  base,
			PasswordAction: base + "/password",
			WithCedula:     user.Rol != account.RoleAdmin,
			WithAdminCode:  user.Rol == account.RoleAdmin,
		},
	}
}

func (h *Handler) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "profile", profilePage(h.session(r).User))
}

func (h *Handler) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	user := s.User
	role := user.Rol

	form := &profileForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "profile", profilePage(user), form, err)
		return
	}

	photo, closePhoto, err := formUpload(r, "foto")
	if err != nil {
		h.badForm(w, err)
		return
	}
	defer closePhoto()

	input := backend.ProfileInput{
		Nombres:   validation.NormalizeName(form.Nombres),
		Apellidos: validation.NormalizeName(form.Apellidos),
		Email:     validation.NormalizeEmail(form.Email),
	}
	if cedula := validation.DigitsOnly(form.Cedula); cedula != "" && cedula != user.Cedula {
		input.Cedula = cedula
	}

	resp, err := h.api.UpdateProfile(h.apiContext(r), role, input, photo)
	if err != nil {
		h.flashAPIError(r, err, "Error al actualizar el perfil.")
		page := profilePage(user)
		page.Form = formValues(form)
		h.render(w, r, http.StatusUnprocessableEntity, "profile", page)
		return
	}

	s.SetUser(mergeProfile(user, input, resp.Data))

	msg := profileMessages[role][0]
	if role == account.RoleAdmin {
		msg = msgOr(resp.Msg, msg)
	}
	h.flash(r, session.FlashSuccess, msg)
	h.redirect(w, r, role.DashboardPath()+"/perfil")
}

// mergeProfile returns the user to keep in the session after a profile
// update, preferring what the API sent back.
func mergeProfile(current *account.User, input backend.ProfileInput, updated *account.User) *account.User {
	merged := *current
	if updated != nil {
		merged = *updated
		if merged.ID == "" {
			merged.ID = current.ID
		}
		if merged.Rol == "" {
			merged.Rol = current.Rol
		}
		if merged.CompanyCode == "" {
			merged.CompanyCode = current.CompanyCode
		}
		if merged.Foto == "" {
			merged.Foto = current.Foto
		}
		merged.Token = ""
		return &merged
	}

	merged.Nombres = input.Nombres
	merged.Apellidos = input.Apellidos
	merged.Email = input.Email
	if input.Cedula != "" {
		merged.Cedula = input.Cedula
	}
	return &merged
}

func (h *Handler) handlePasswordUpdate(w http.ResponseWriter, r *http.Request) {
	user := h.session(r).User
	role := user.Rol

	form := &passwordForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	fieldErrors := validation.FieldErrors{}
	if err := h.validator.Struct(form); err != nil && !errors.As(err, &fieldErrors) {
		log.Errorf("validate password form: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if role == account.RoleAdmin && form.AdminCode == "" {
		fieldErrors["adminCode"] = "El código de administrador es requerido"
	}
	if len(fieldErrors) > 0 {
		page := profilePage(user)
		page.Errors = fieldErrors
		h.render(w, r, http.StatusUnprocessableEntity, "profile", page)
		return
	}

	resp, err := h.api.UpdatePassword(h.apiContext(r), role, backend.PasswordUpdate{
		Password:        form.Password,
		ConfirmPassword: form.ConfirmPassword,
		AdminCode:       form.AdminCode,
	})
	if err != nil {
		h.flashAPIError(r, err, "Error al actualizar la contraseña.")
		h.redirect(w, r, role.DashboardPath()+"/perfil")
		return
	}

	msg := profileMessages[role][1]
	if role == account.RoleAdmin {
		msg = msgOr(resp.Msg, msg)
	}
	h.flash(r, session.FlashSuccess, msg)
	h.redirect(w, r, role.DashboardPath()+"/perfil")
}
