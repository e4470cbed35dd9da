package web

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/centinelapos/webapp/internal/account"
	"github.com/centinelapos/webapp/internal/backend"
	"github.com/centinelapos/webapp/internal/leads"
	"github.com/centinelapos/webapp/internal/middleware"
	"github.com/centinelapos/webapp/internal/session"
	"github.com/centinelapos/webapp/internal/telemetry/metrics"
	"github.com/centinelapos/webapp/internal/validation"
	"github.com/centinelapos/webapp/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type backendAPI interface {
	Login(ctx context.Context, role account.Role, creds backend.Credentials) (*backend.LoginResponse, error)
	AdminLogin(ctx context.Context, creds backend.AdminCredentials) (*backend.LoginResponse, error)
	Register(ctx context.Context, role account.Role, reg backend.Registration) (*backend.MsgResponse, error)
	ConfirmEmail(ctx context.Context, role account.Role, token string) (*backend.MsgResponse, error)
	RecoverPassword(ctx context.Context, role account.Role, email string) (*backend.MsgResponse, error)
	VerifyResetToken(ctx context.Context, role account.Role, token string) (*backend.MsgResponse, error)
	ResetPassword(ctx context.Context, role account.Role, token, password, confirmPassword string) (*backend.MsgResponse, error)

	ListAdmins(ctx context.Context) ([]backend.Admin, error)
	ListBosses(ctx context.Context) ([]backend.Boss, error)
	AdminDetail(ctx context.Context, id string) (*backend.Admin, error)
	BossDetail(ctx context.Context, id string) (*backend.Boss, error)
	DeactivateAdmin(ctx context.Context, id string) (*backend.MsgResponse, error)
	RegisterAdmin(ctx context.Context, reg backend.AdminRegistration) (*backend.MsgResponse, error)

	UpdateProfile(ctx context.Context, role account.Role, input backend.ProfileInput, photo *backend.Upload) (*backend.ProfileResponse, error)
	UpdatePassword(ctx context.Context, role account.Role, update backend.PasswordUpdate) (*backend.MsgResponse, error)

	ListBusinesses(ctx context.Context) ([]backend.Business, error)
	BusinessDetail(ctx context.Context, id string) (*backend.Business, error)
	CreateBusiness(ctx context.Context, emailBoss string, input backend.BusinessInput, logo *backend.Upload) (*backend.MsgResponse, error)
	UpdateBusiness(ctx context.Context, id string, input backend.BusinessInput, logo *backend.Upload) (*backend.MsgResponse, error)
	AddEmployee(ctx context.Context, invite backend.InviteEmployee) (*backend.MsgResponse, error)
	DeleteEmployee(ctx context.Context, id string) (*backend.MsgResponse, error)

	Plans(ctx context.Context) (*backend.PlansResponse, error)
	Checkout(ctx context.Context, priceID string) (*backend.CheckoutResponse, error)
}

var _ backendAPI = (*backend.Client)(nil)

type HandlerParams struct {
	BasePath       string
	API            backendAPI
	Sessions       *session.Manager
	Validator      *validation.Validator
	Renderer       *Renderer
	LeadsRepo      leads.Repo
	ChatRelay      http.Handler
	MetricsManager *metrics.Manager
	// GoogleAuthURL starts the OAuth flow on the API, hidden when empty
	GoogleAuthURL string
}

type Handler struct {
	basePath  string
	api       backendAPI
	sessions  *session.Manager
	validator *validation.Validator
	renderer  *Renderer
	leadsRepo leads.Repo
	chatRelay http.Handler
	metrics   *metrics.Manager
	googleURL string

	// ability to inject time for unit tests
	Now func() time.Time
}

func NewHandler(params HandlerParams) *Handler {
	return &Handler{
		basePath:  params.BasePath,
		api:       params.API,
		sessions:  params.Sessions,
		validator: params.Validator,
		renderer:  params.Renderer,
		leadsRepo: params.LeadsRepo,
		chatRelay: params.ChatRelay,
		metrics:   params.MetricsManager,
		googleURL: params.GoogleAuthURL,
		Now:       time.Now,
	}
}

// SetupRoutes registers every page on router, which is expected to already
// carry the session middleware. loginLimiter wraps the credential posts.
func (h *Handler) SetupRoutes(router *mux.Router, loginLimiter func(next http.Handler) http.Handler) {
	if loginLimiter == nil {
		loginLimiter = func(next http.Handler) http.Handler { return next }
	}
	limited := func(f http.HandlerFunc) http.Handler {
		return loginLimiter(f)
	}

	router.PathPrefix("/static/").Handler(
		http.StripPrefix(h.basePath+"/static/", http.FileServer(http.FS(staticFiles()))),
	).Methods("GET").Name("static")

	router.HandleFunc("/contact", h.handleContact).Methods("POST").Name("contact")
	router.HandleFunc("/newsletter", h.handleNewsletter).Methods("POST").Name("newsletter")
	router.HandleFunc("/logout", h.handleLogout).Methods("POST").Name("logout")

	public := router.NewRoute().Subrouter()
	public.Use(middleware.PublicRoute(h.basePath))
	public.HandleFunc("/", h.handleHome).Methods("GET").Name("home")
	public.HandleFunc("/login", h.handleLoginPage).Methods("GET").Name("login-page")
	public.Handle("/login", limited(h.handleLogin)).Methods("POST").Name("login")
	public.HandleFunc("/register", h.handleRegisterPage).Methods("GET").Name("register-page")
	public.Handle("/register", limited(h.handleRegister)).Methods("POST").Name("register")
	public.HandleFunc("/confirm/{rol}/{token}", h.handleConfirmEmail).Methods("GET").Name("confirm-email")
	public.HandleFunc("/forgot-password", h.handleForgotPasswordPage).Methods("GET").Name("forgot-password-page")
	public.Handle("/forgot-password", limited(h.handleForgotPassword)).Methods("POST").Name("forgot-password")
	public.HandleFunc("/reset-password/{token}", h.handleResetPasswordPage).Methods("GET").Name("reset-password-page")
	public.Handle("/reset-password/{token}", limited(h.handleResetPassword)).Methods("POST").Name("reset-password")
	public.HandleFunc("/auth/google/callback", h.handleGoogleCallback).Methods("GET").Name("google-callback")
	public.HandleFunc("/admin/login", h.handleAdminLoginPage).Methods("GET").Name("admin-login-page")
	public.Handle("/admin/login", limited(h.handleAdminLogin)).Methods("POST").Name("admin-login")
	public.HandleFunc("/admin/password/recover", h.handleAdminRecoverPage).Methods("GET").Name("admin-recover-page")
	public.Handle("/admin/password/recover", limited(h.handleAdminRecover)).Methods("POST").Name("admin-recover")
	public.HandleFunc("/admin/password/reset/{token}", h.handleAdminResetPage).Methods("GET").Name("admin-reset-page")
	public.Handle("/admin/password/reset/{token}", limited(h.handleAdminReset)).Methods("POST").Name("admin-reset")

	signedIn := router.NewRoute().Subrouter()
	signedIn.Use(middleware.ProtectedRoute(h.basePath))
	signedIn.HandleFunc("/dashboard", h.handleDashboard).Methods("GET").Name("dashboard")
	if h.chatRelay != nil {
		signedIn.Handle("/chat/ws", h.chatRelay).Methods("GET").Name("chat-ws")
	}

	boss := router.NewRoute().Subrouter()
	boss.Use(middleware.ProtectedRoute(h.basePath, account.RoleBoss))
	boss.HandleFunc("/dashboard/admin", h.handleBossDashboard).Methods("GET").Name("boss-dashboard")
	boss.HandleFunc("/dashboard/admin/negocios/nuevo", h.handleBusinessNewPage).Methods("GET").Name("business-new-page")
	boss.HandleFunc("/dashboard/admin/negocios", h.handleBusinessCreate).Methods("POST").Name("business-create")
	boss.HandleFunc("/dashboard/admin/negocios/{id}", h.handleBusinessDetail).Methods("GET").Name("business-detail")
	boss.HandleFunc("/dashboard/admin/negocios/{id}/editar", h.handleBusinessEditPage).Methods("GET").Name("business-edit-page")
	boss.HandleFunc("/dashboard/admin/negocios/{id}", h.handleBusinessUpdate).Methods("POST").Name("business-update")
	boss.HandleFunc("/dashboard/admin/empleados/invitar", h.handleInviteEmployee).Methods("POST").Name("invite-employee")
	boss.HandleFunc("/dashboard/admin/empleados/{id}/eliminar", h.handleDeleteEmployee).Methods("POST").Name("delete-employee")
	boss.HandleFunc("/dashboard/admin/perfil", h.handleProfilePage).Methods("GET").Name("boss-profile-page")
	boss.HandleFunc("/dashboard/admin/perfil", h.handleProfileUpdate).Methods("POST").Name("boss-profile")
	boss.HandleFunc("/dashboard/admin/perfil/password", h.handlePasswordUpdate).Methods("POST").Name("boss-password")
	boss.HandleFunc("/dashboard/upgrade-plan", h.handleUpgradePlan).Methods("GET").Name("upgrade-plan")
	boss.HandleFunc("/dashboard/upgrade-plan/checkout", h.handleCheckout).Methods("POST").Name("checkout")
	boss.HandleFunc("/dashboard/upgrade-plan/result", h.handlePaymentResult).Methods("GET").Name("payment-result")

	employee := router.NewRoute().Subrouter()
	employee.Use(middleware.ProtectedRoute(h.basePath, account.RoleEmployee))
	employee.HandleFunc("/dashboard/employee", h.handleEmployeeDashboard).Methods("GET").Name("employee-dashboard")
	employee.HandleFunc("/dashboard/employee/perfil", h.handleProfilePage).Methods("GET").Name("employee-profile-page")
	employee.HandleFunc("/dashboard/employee/perfil", h.handleProfileUpdate).Methods("POST").Name("employee-profile")
	employee.HandleFunc("/dashboard/employee/perfil/password", h.handlePasswordUpdate).Methods("POST").Name("employee-password")

	admin := router.NewRoute().Subrouter()
	admin.Use(middleware.ProtectedRoute(h.basePath, account.RoleAdmin))
	admin.HandleFunc("/admin/dashboard", h.handleAdminDashboard).Methods("GET").Name("admin-dashboard")
	admin.HandleFunc("/admin/dashboard/admins/{id}", h.handleAdminDetail).Methods("GET").Name("admin-detail")
	admin.HandleFunc("/admin/dashboard/admins/{id}/desactivar", h.handleDeactivateAdmin).Methods("POST").Name("admin-deactivate")
	admin.HandleFunc("/admin/dashboard/jefes/{id}", h.handleBossDetail).Methods("GET").Name("admin-boss-detail")
	admin.HandleFunc("/admin/dashboard/registrar", h.handleRegisterAdmin).Methods("POST").Name("admin-register")
	admin.HandleFunc("/admin/dashboard/perfil", h.handleProfilePage).Methods("GET").Name("admin-profile-page")
	admin.HandleFunc("/admin/dashboard/perfil", h.handleProfileUpdate).Methods("POST").Name("admin-profile")
	admin.HandleFunc("/admin/dashboard/perfil/password", h.handlePasswordUpdate).Methods("POST").Name("admin-password")
}

// Fallback sends every unknown path to the home page.
func (h *Handler) Fallback() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, h.basePath+"/", http.StatusFound)
	})
}

func (h *Handler) session(r *http.Request) *session.Session {
	if s := session.FromContext(r.Context()); s != nil {
		return s
	}
	// routes are always served behind the session middleware, this only
	// keeps handlers safe when they are not
	return session.New("", h.Now())
}

// apiContext carries the session token to the backend client.
func (h *Handler) apiContext(r *http.Request) context.Context {
	return backend.WithToken(r.Context(), h.session(r).Token)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.basePath+path, http.StatusSeeOther)
}

func (h *Handler) flash(r *http.Request, kind session.FlashKind, msg string) {
	h.session(r).AddFlash(kind, msg)
}

// flashAPIError shows the message of a failed backend call, or fallback when
// the backend did not send one.
func (h *Handler) flashAPIError(r *http.Request, err error, fallback string) {
	msg := backend.Message(err)
	if msg == backend.DefaultErrorMessage && fallback != "" {
		msg = fallback
	}
	h.flash(r, session.FlashError, msg)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, page *Page) {
	if page == nil {
		page = &Page{}
	}
	s := h.session(r)
	page.BasePath = h.basePath
	page.User = s.User
	if !s.IsAuthenticated {
		page.User = nil
	} else if h.chatRelay != nil {
		page.ChatURL = h.basePath + "/chat/ws"
	}
	page.Flashes = s.PopFlashes()

	var buf bytes.Buffer
	if err := h.renderer.Render(&buf, name, page); err != nil {
		log.Errorf("render page [%s]: %s", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytes(w, pkg.ContentType.HTML, buf.Bytes(), status)
}

// formErrors renders the form page again with inline errors.
func (h *Handler) formErrors(w http.ResponseWriter, r *http.Request, name string, page *Page, form any, err error) {
	var fieldErrors validation.FieldErrors
	if !errors.As(err, &fieldErrors) {
		log.Errorf("validate form for [%s]: %s", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	page.Form = formValues(form)
	page.Errors = fieldErrors
	h.render(w, r, http.StatusUnprocessableEntity, name, page)
}

func (h *Handler) badForm(w http.ResponseWriter, err error) {
	log.Warnf("bad form: %s", err)
	pkg.WriteResponse(w, pkg.ContentType.Text, "formulario inválido", http.StatusBadRequest)
}
