package backend

import (
	"bytes"
	"encoding/json"

	"github.com/centinelapos/webapp/internal/account"
)

// MsgResponse is the envelope most write endpoints answer with.
type MsgResponse struct {
	Msg string `json:"msg"`
}

type LoginResponse struct {
	account.User
	Msg string `json:"msg,omitempty"`
}

type ProfileResponse struct {
	Msg  string        `json:"msg"`
	Data *account.User `json:"data"`
}

// BossRef is the owner of a business. The API sends either the populated
// owner or just its id.
type BossRef struct {
	ID        string `json:"_id"`
	Nombres   string `json:"nombres"`
	Apellidos string `json:"apellidos"`
	Email     string `json:"email"`
}

func (b *BossRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &b.ID)
	}
	type plain BossRef
	return json.Unmarshal(data, (*plain)(b))
}

type Business struct {
	ID           string         `json:"_id"`
	CompanyName  string         `json:"companyName"`
	CompanyCode  string         `json:"companyCode"`
	RUC          string         `json:"ruc"`
	Categoria    string         `json:"categoria"`
	Telefono     string         `json:"telefono"`
	Direccion    string         `json:"direccion"`
	EmailNegocio string         `json:"emailNegocio"`
	Descripcion  string         `json:"descripcion"`
	Logo         string         `json:"logo"`
	Status       bool           `json:"status"`
	EmailBoss    *BossRef       `json:"emailBoss,omitempty"`
	Empleados    []account.User `json:"empleados,omitempty"`
}

type BusinessListResponse struct {
	CompanyNames []Business `json:"companyNames"`
}

type Admin struct {
	account.User
	AdminCode string `json:"adminCode"`
	Status    bool   `json:"status"`
}

type Boss struct {
	account.User
	Plan         string     `json:"plan"`
	Status       bool       `json:"status"`
	CompanyNames []Business `json:"companyNames"`
}

type Price struct {
	ID         string `json:"id"`
	Nickname   string `json:"nickname"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

type PlansResponse struct {
	Prices struct {
		Data []Price `json:"data"`
	} `json:"prices"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
	Msg string `json:"msg,omitempty"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AdminCredentials struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	AdminCode string `json:"adminCode"`
}

type Registration struct {
	Nombres     string `json:"nombres"`
	Apellidos   string `json:"apellidos"`
	Cedula      string `json:"cedula"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyCode string `json:"companyCode,omitempty"`
}

type AdminRegistration struct {
	Nombres   string `json:"nombres"`
	Apellidos string `json:"apellidos"`
	Cedula    string `json:"cedula"`
	Email     string `json:"email"`
}

type BusinessInput struct {
	CompanyName  string
	RUC          string
	Categoria    string
	Telefono     string
	Direccion    string
	EmailNegocio string
	Descripcion  string
}

func (b BusinessInput) fields() map[string]string {
	return map[string]string{
		"companyName":  b.CompanyName,
		"ruc":          b.RUC,
		"categoria":    b.Categoria,
		"telefono":     b.Telefono,
		"direccion":    b.Direccion,
		"emailNegocio": b.EmailNegocio,
		"descripcion":  b.Descripcion,
	}
}

type ProfileInput struct {
	Nombres   string
	Apellidos string
	Email     string
	// Cedula is sent only when it changed
	Cedula string
}

func (p ProfileInput) fields() map[string]string {
	fields := map[string]string{
		"nombres":   p.Nombres,
		"apellidos": p.Apellidos,
		"email":     p.Email,
	}
	if p.Cedula != "" {
		fields["cedula"] = p.Cedula
	}
	return fields
}

type PasswordUpdate struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AdminCode       string `json:"adminCode,omitempty"`
}

type InviteEmployee struct {
	EmailEmpleado string `json:"emailEmpleado"`
	EmailJefe     string `json:"emailJefe"`
	CompanyCode   string `json:"companyCode"`
}
