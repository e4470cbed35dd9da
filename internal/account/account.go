package account

import (
	"errors"
	"strings"
)

type Role string

const (
	RoleBoss     Role = "jefe"
	RoleEmployee Role = "empleado"
	RoleAdmin    Role = "administrador"
)

var ErrUnexpectedLoginShape = errors.New("La respuesta del servidor no tiene la estructura esperada")

func (r Role) Known() bool {
	switch r {
	case RoleBoss, RoleEmployee, RoleAdmin:
		return true
	default:
		return false
	}
}

// DashboardPath returns the canonical landing page of the role.
func (r Role) DashboardPath() string {
	switch r {
	case RoleBoss:
		return "/dashboard/admin"
	case RoleEmployee:
		return "/dashboard/employee"
	case RoleAdmin:
		return "/admin/dashboard"
	default:
		return "/"
	}
}

// Label is the name the UI uses for the role.
func (r Role) Label() string {
	switch r {
	case RoleBoss:
		return "Propietario"
	case RoleEmployee:
		return "Empleado"
	case RoleAdmin:
		return "Administrador"
	default:
		return string(r)
	}
}

// LoginPath is where a user of the role signs in again.
func (r Role) LoginPath() string {
	if r == RoleAdmin {
		return "/admin/login"
	}
	return "/login"
}

type User struct {
	ID          string `json:"_id"`
	Nombres     string `json:"nombres"`
	Apellidos   string `json:"apellidos"`
	Email       string `json:"email"`
	Cedula      string `json:"cedula,omitempty"`
	Rol         Role   `json:"rol"`
	Foto        string `json:"foto,omitempty"`
	CompanyCode string `json:"companyCode,omitempty"`
	Token       string `json:"token,omitempty"`
	// AuthGoogle marks owners that signed up through Google and still
	// have to complete their profile
	AuthGoogle bool `json:"authGoogle,omitempty"`
}

// NeedsProfile reports whether the user must fill the profile before using
// the dashboard.
func (u *User) NeedsProfile() bool {
	return u != nil && u.AuthGoogle && u.Cedula == ""
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.Nombres + " " + u.Apellidos)
}

// CheckLoginShape verifies a login response carries the fields the app relies on.
func (u *User) CheckLoginShape() error {
	if u == nil || u.Nombres == "" || u.Rol == "" || u.ID == "" {
		return ErrUnexpectedLoginShape
	}
	return nil
}
