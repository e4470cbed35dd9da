package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/validation"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	recoverSent        = "Si el email está registrado, se ha enviado un correo para restablecer la contraseña."
	alreadyVerifiedMsg = "ya ha sido verificada"
)

type authData struct {
	GoogleAuthURL string
}

type confirmData struct {
	Confirmed bool
	Message   string
}

type resetData struct {
	Valid     bool
	Action    string
	Role      string
	LoginPath string
}

// formRole maps the role selector of the auth forms to the account role.
func formRole(tab string) account.Role {
	if tab == "employee" {
		return account.RoleEmployee
	}
	return account.RoleBoss
}

func (h *Handler) authPage(form any) *Page {
	page := &Page{Data: authData{GoogleAuthURL: h.googleURL}}
	if form != nil {
		page.Form = formValues(form)
	}
	return page
}

func (h *Handler) countLogin(role account.Role, result string) {
	if h.metrics == nil {
		return
	}
	h.metrics.CounterLogins.WithLabelValues(string(role), result).Inc()
}

// signIn binds the logged in user to a fresh session id.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, token string, user *account.User) bool {
	s := h.session(r)
	if err := h.sessions.Renew(r.Context(), s); err != nil {
		log.Errorf("renew session on login: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return false
	}
	user.Token = ""
	s.Login(token, user)
	return true
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", h.authPage(nil))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := &loginForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "login", h.authPage(nil), form, err)
		return
	}

	expected := formRole(form.Role)
	resp, err := h.api.Login(r.Context(), expected, backend.Credentials{
		Email:    validation.NormalizeEmail(form.Email),
		Password: form.Password,
	})
	if err != nil {
		h.countLogin(expected, "error")
		h.flashAPIError(r, err, "Error al iniciar sesión")
		// the password field is never filled again
		h.render(w, r, http.StatusUnauthorized, "login", h.authPage(form))
		return
	}

	user := resp.User
	err = user.CheckLoginShape()
	if err == nil && user.Token == "" {
		err = account.ErrUnexpectedLoginShape
	}
	if err != nil {
		h.countLogin(expected, "error")
		h.flash(r, session.FlashError, err.Error())
		h.render(w, r, http.StatusBadGateway, "login", h.authPage(form))
		return
	}
	if user.Rol != expected {
		h.countLogin(expected, "wrong_role")
		h.flash(r, session.FlashError, "Debes iniciar sesión como "+expected.Label())
		h.render(w, r, http.StatusForbidden, "login", h.authPage(form))
		return
	}

	token := user.Token
	if !h.signIn(w, r, token, &user) {
		return
	}
	h.countLogin(expected, "ok")
	h.flash(r, session.FlashSuccess, fmt.Sprintf("Bienvenido %s %s", user.Nombres, user.Apellidos))
	h.redirect(w, r, user.Rol.DashboardPath())
}

func (h *Handler) handleAdminLoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "admin_login", &Page{})
}

func (h *Handler) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	form := &adminLoginForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "admin_login", &Page{}, form, err)
		return
	}

	resp, err := h.api.AdminLogin(r.Context(), backend.AdminCredentials{
		Email:     validation.NormalizeEmail(form.Email),
		Password:  form.Password,
		AdminCode: form.AdminCode,
	})
	if err != nil {
		h.countLogin(account.RoleAdmin, "error")
		h.flashAPIError(r, err, "Error con el servidor. Inténtalo de nuevo más tarde.")
		h.render(w, r, http.StatusUnauthorized, "admin_login", &Page{Form: formValues(form)})
		return
	}

	user := resp.User
	if user.Rol == "" {
		user.Rol = account.RoleAdmin
	}
	if user.Rol != account.RoleAdmin || user.Token == "" {
		h.countLogin(account.RoleAdmin, "error")
		h.flash(r, session.FlashError, account.ErrUnexpectedLoginShape.Error())
		h.render(w, r, http.StatusBadGateway, "admin_login", &Page{Form: formValues(form)})
		return
	}

	if !h.signIn(w, r, user.Token, &user) {
		return
	}
	h.countLogin(account.RoleAdmin, "ok")
	h.flash(r, session.FlashSuccess, "Login de administrador exitoso!")
	h.redirect(w, r, account.RoleAdmin.DashboardPath())
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", h.authPage(nil))
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := &registerForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "register", h.authPage(nil), form, err)
		return
	}

	role := formRole(form.Role)
	resp, err := h.api.Register(r.Context(), role, backend.Registration{
		Nombres:     validation.NormalizeName(form.Nombres),
		Apellidos:   validation.NormalizeName(form.Apellidos),
		Cedula:      validation.DigitsOnly(form.Cedula),
		Email:       validation.NormalizeEmail(form.Email),
		Password:    form.Password,
		CompanyCode: validation.NormalizeCompanyCode(form.CompanyCode),
	})
	if err != nil {
		h.flashAPIError(r, err, "Error al registrar usuario")
		h.render(w, r, http.StatusUnprocessableEntity, "register", h.authPage(form))
		return
	}

	h.flash(r, session.FlashSuccess, resp.Msg)
	h.redirect(w, r, "/login")
}

func (h *Handler) handleConfirmEmail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role := account.RoleEmployee
	if vars["rol"] == string(account.RoleBoss) {
		role = account.RoleBoss
	}

	data := confirmData{}
	if _, err := h.api.ConfirmEmail(r.Context(), role, vars["token"]); err != nil {
		msg := backend.Message(err)
		if strings.Contains(msg, alreadyVerifiedMsg) {
			data.Confirmed = true
			data.Message = msg
			h.flash(r, session.FlashInfo, msg)
		} else {
			if msg == backend.DefaultErrorMessage {
				msg = "Error al verificar el email"
			}
			data.Message = msg
			h.flash(r, session.FlashError, msg)
		}
	} else {
		data.Confirmed = true
		if role == account.RoleBoss {
			data.Message = "Tu cuenta de propietario ha sido verificada correctamente"
		} else {
			data.Message = "Tu cuenta de empleado ha sido verificada correctamente"
		}
		h.flash(r, session.FlashSuccess, data.Message)
	}

	h.render(w, r, http.StatusOK, "confirm", &Page{Title: "Confirmación", Data: data})
}

func (h *Handler) handleForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot_password", &Page{})
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := &recoverForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "forgot_password", &Page{}, form, err)
		return
	}

	resp, err := h.api.RecoverPassword(r.Context(), formRole(form.Role), validation.NormalizeEmail(form.Email))
	if err != nil {
		h.flashAPIError(r, err, "Error con el servidor.")
		h.render(w, r, http.StatusUnprocessableEntity, "forgot_password", &Page{Form: formValues(form)})
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, recoverSent))
	h.redirect(w, r, "/login")
}

// verifyResetToken tries the boss endpoint first and then the employee one.
func (h *Handler) verifyResetToken(r *http.Request, token string) (account.Role, bool) {
	for _, role := range []account.Role{account.RoleBoss, account.RoleEmployee} {
		_, err := h.api.VerifyResetToken(r.Context(), role, token)
		if err == nil {
			return role, true
		}
		log.Debugf("reset token not valid for [%s]: %s", role, err)
	}
	return "", false
}

func tabOf(role account.Role) string {
	if role == account.RoleEmployee {
		return "employee"
	}
	return "boss"
}

func (h *Handler) handleResetPasswordPage(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	data := resetData{
		Action:    "/reset-password/" + token,
		LoginPath: "/login",
	}
	if role, ok := h.verifyResetToken(r, token); ok {
		data.Valid = true
		data.Role = tabOf(role)
	}
	h.render(w, r, http.StatusOK, "reset_password", &Page{Data: data})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	form := &resetForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	data := resetData{
		Valid:     true,
		Action:    "/reset-password/" + token,
		Role:      form.Role,
		LoginPath: "/login",
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "reset_password", &Page{Data: data}, form, err)
		return
	}

	resp, err := h.api.ResetPassword(r.Context(), formRole(form.Role), token, form.Password, form.ConfirmPassword)
	if err != nil {
		h.flashAPIError(r, err, "No se pudo restablecer la contraseña. Inténtalo de nuevo.")
		h.render(w, r, http.StatusUnprocessableEntity, "reset_password", &Page{Data: data})
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Contraseña restablecida con éxito. Inicia sesión."))
	h.redirect(w, r, "/login")
}

func (h *Handler) handleAdminRecoverPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "admin_recover", &Page{})
}

func (h *Handler) handleAdminRecover(w http.ResponseWriter, r *http.Request) {
	form := &adminRecoverForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "admin_recover", &Page{}, form, err)
		return
	}

	resp, err := h.api.RecoverPassword(r.Context(), account.RoleAdmin, validation.NormalizeEmail(form.Email))
	if err != nil {
		h.flashAPIError(r, err, "Error con el servidor.")
		h.render(w, r, http.StatusUnprocessableEntity, "admin_recover", &Page{Form: formValues(form)})
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, recoverSent))
	h.redirect(w, r, "/admin/login")
}

func (h *Handler) handleAdminResetPage(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	data := resetData{
		Action:    "/admin/password/reset/" + token,
		LoginPath: "/admin/login",
	}
	if resp, err := h.api.VerifyResetToken(r.Context(), account.RoleAdmin, token); err != nil {
		h.flashAPIError(r, err, "Lo sentimos, el token no es válido o ha expirado.")
	} else {
		data.Valid = true
		h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Token verificado con éxito. Puedes crear tu nueva contraseña."))
	}
	h.render(w, r, http.StatusOK, "reset_password", &Page{Data: data})
}

func (h *Handler) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	token := mux.Vars(r)["token"]
	form := &adminResetForm{}
	if err := decodeForm(r, form); err != nil {
		h.badForm(w, err)
		return
	}
	data := resetData{
		Valid:     true,
		Action:    "/admin/password/reset/" + token,
		LoginPath: "/admin/login",
	}
	if err := h.validator.Struct(form); err != nil {
		h.formErrors(w, r, "reset_password", &Page{Data: data}, form, err)
		return
	}

	resp, err := h.api.ResetPassword(r.Context(), account.RoleAdmin, token, form.Password, form.ConfirmPassword)
	if err != nil {
		h.flashAPIError(r, err, "No se pudo restablecer la contraseña. Inténtalo de nuevo.")
		h.render(w, r, http.StatusUnprocessableEntity, "reset_password", &Page{Data: data})
		return
	}

	h.flash(r, session.FlashSuccess, msgOr(resp.Msg, "Contraseña restablecida con éxito. Inicia sesión."))
	h.redirect(w, r, "/admin/login")
}

// googleCallback is the payload of the OAuth redirect, the user comes
// nested under "jefe".
type googleCallback struct {
	Jefe *account.User `json:"jefe"`
}

func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	userParam := r.URL.Query().Get("user")
	if token == "" || userParam == "" {
		h.flash(r, session.FlashError, "No se pudieron obtener los datos de autenticación.")
		h.redirect(w, r, "/login")
		return
	}

	// the payload may arrive encoded twice
	if !json.Valid([]byte(userParam)) {
		if unescaped, err := url.QueryUnescape(userParam); err == nil {
			userParam = unescaped
		}
	}

	payload := &googleCallback{}
	err := json.Unmarshal([]byte(userParam), payload)
	if err == nil && payload.Jefe == nil {
		err = errors.New("missing jefe")
	}
	if err == nil && !googleRole(payload.Jefe.Rol) {
		err = fmt.Errorf("role %q not allowed", payload.Jefe.Rol)
	}
	if err != nil {
		log.Warnf("google callback with malformed user: %s", err)
		h.flash(r, session.FlashError, "Hubo un problema al procesar los datos de autenticación. Por favor, inténtalo de nuevo.")
		h.redirect(w, r, "/login")
		return
	}

	user := payload.Jefe
	if !h.signIn(w, r, token, user) {
		return
	}
	h.countLogin(user.Rol, "ok")
	h.flash(r, session.FlashSuccess, fmt.Sprintf("Bienvenido %s %s", user.Nombres, user.Apellidos))
	if user.Rol == account.RoleBoss {
		h.redirect(w, r, account.RoleBoss.DashboardPath())
		return
	}
	h.redirect(w, r, account.RoleEmployee.DashboardPath())
}

// googleRole reports whether a Google sign-in may carry role r. Admins
// never sign in through Google.
func googleRole(r account.Role) bool {
	return r == account.RoleBoss || r == account.RoleEmployee
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	s := h.session(r)
	role := s.Role()
	s.Logout()
	if err := h.sessions.Renew(r.Context(), s); err != nil {
		log.Errorf("renew session on logout: %s", err)
	}
	h.flash(r, session.FlashSuccess, "Sesión cerrada correctamente")
	h.redirect(w, r, role.LoginPath())
}

func msgOr(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}
