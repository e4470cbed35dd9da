package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/centinelapos/webapp/internal/account"

	log "github.com/sirupsen/logrus"
)

const (
	plansCacheKey    = "boss::plans"
	plansCacheExpire = 10 * 60 // seconds
)

// rolePath is the API path segment that owns the role's auth endpoints.
func rolePath(role account.Role) string {
	switch role {
	case account.RoleBoss:
		return "/boss"
	case account.RoleAdmin:
		return "/admins"
	default:
		return "/employees"
	}
}

func escape(segment string) string {
	return url.PathEscape(segment)
}

// auth

func (c *Client) Login(ctx context.Context, role account.Role, creds Credentials) (*LoginResponse, error) {
	resp := &LoginResponse{}
	if err := c.Do(ctx, http.MethodPost, rolePath(role)+"/login", creds, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AdminLogin(ctx context.Context, creds AdminCredentials) (*LoginResponse, error) {
	resp := &LoginResponse{}
	if err := c.Do(ctx, http.MethodPost, "/admins/login", creds, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, role account.Role, reg Registration) (*MsgResponse, error) {
	if role != account.RoleEmployee {
		reg.CompanyCode = ""
	}
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPost, rolePath(role)+"/register", reg, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ConfirmEmail(ctx context.Context, role account.Role, token string) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodGet, rolePath(role)+"/confirm/"+escape(token), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RecoverPassword(ctx context.Context, role account.Role, email string) (*MsgResponse, error) {
	resp := &MsgResponse{}
	body := map[string]string{"email": email}
	if err := c.Do(ctx, http.MethodPost, rolePath(role)+"/password/recover", body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) VerifyResetToken(ctx context.Context, role account.Role, token string) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodGet, rolePath(role)+"/password/verify/"+escape(token), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) ResetPassword(ctx context.Context, role account.Role, token, password, confirmPassword string) (*MsgResponse, error) {
	body := map[string]string{"password": password}
	// admins use the camel case name for the confirmation field
	if role == account.RoleAdmin {
		body["confirmPassword"] = confirmPassword
	} else {
		body["confirmpassword"] = confirmPassword
	}

	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPost, rolePath(role)+"/password/reset/"+escape(token), body, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// admins

func (c *Client) ListAdmins(ctx context.Context) ([]Admin, error) {
	var admins []Admin
	if err := c.Do(ctx, http.MethodGet, "/admins/list?status=activo", nil, &admins); err != nil {
		return nil, err
	}
	return admins, nil
}

func (c *Client) ListBosses(ctx context.Context) ([]Boss, error) {
	var bosses []Boss
	if err := c.Do(ctx, http.MethodGet, "/admins/list/boss", nil, &bosses); err != nil {
		return nil, err
	}
	return bosses, nil
}

func (c *Client) AdminDetail(ctx context.Context, id string) (*Admin, error) {
	admin := &Admin{}
	if err := c.Do(ctx, http.MethodGet, "/admins/detail/"+escape(id), nil, admin); err != nil {
		return nil, err
	}
	return admin, nil
}

func (c *Client) BossDetail(ctx context.Context, id string) (*Boss, error) {
	boss := &Boss{}
	if err := c.Do(ctx, http.MethodGet, "/admins/detail/boss/"+escape(id), nil, boss); err != nil {
		return nil, err
	}
	return boss, nil
}

func (c *Client) DeactivateAdmin(ctx context.Context, id string) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPut, "/admins/delete/"+escape(id), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) RegisterAdmin(ctx context.Context, reg AdminRegistration) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPost, "/admins/register", reg, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// profile

func profilePaths(role account.Role) (profile, password string, err error) {
	switch role {
	case account.RoleBoss:
		return "/boss/perfil/update", "/boss/perfil/update/password", nil
	case account.RoleEmployee:
		return "/employees/update", "/employees/update/password", nil
	case account.RoleAdmin:
		return "/admins/perfil/update", "/admins/perfil/update/password", nil
	default:
		return "", "", fmt.Errorf("no profile endpoints for role [%s]", role)
	}
}

func (c *Client) UpdateProfile(ctx context.Context, role account.Role, input ProfileInput, photo *Upload) (*ProfileResponse, error) {
	profilePath, _, err := profilePaths(role)
	if err != nil {
		return nil, err
	}
	resp := &ProfileResponse{}
	if err := c.DoMultipart(ctx, http.MethodPut, profilePath, input.fields(), photo, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdatePassword(ctx context.Context, role account.Role, update PasswordUpdate) (*MsgResponse, error) {
	_, passwordPath, err := profilePaths(role)
	if err != nil {
		return nil, err
	}
	if role != account.RoleAdmin {
		update.AdminCode = ""
	}
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPut, passwordPath, update, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// negocios

func (c *Client) ListBusinesses(ctx context.Context) ([]Business, error) {
	resp := &BusinessListResponse{}
	if err := c.Do(ctx, http.MethodGet, "/negocios/list", nil, resp); err != nil {
		return nil, err
	}
	return resp.CompanyNames, nil
}

func (c *Client) BusinessDetail(ctx context.Context, id string) (*Business, error) {
	business := &Business{}
	if err := c.Do(ctx, http.MethodGet, "/negocios/detail/"+escape(id), nil, business); err != nil {
		return nil, err
	}
	return business, nil
}

func (c *Client) CreateBusiness(ctx context.Context, emailBoss string, input BusinessInput, logo *Upload) (*MsgResponse, error) {
	fields := input.fields()
	fields["emailBoss"] = emailBoss
	resp := &MsgResponse{}
	if err := c.DoMultipart(ctx, http.MethodPost, "/negocios/create", fields, logo, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) UpdateBusiness(ctx context.Context, id string, input BusinessInput, logo *Upload) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.DoMultipart(ctx, http.MethodPut, "/negocios/update/"+escape(id), input.fields(), logo, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AddEmployee(ctx context.Context, invite InviteEmployee) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodPost, "/negocios/add-employee", invite, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) DeleteEmployee(ctx context.Context, id string) (*MsgResponse, error) {
	resp := &MsgResponse{}
	if err := c.Do(ctx, http.MethodDelete, "/negocios/delete-employee/"+escape(id), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// plans

// Plans returns the subscription prices, cached for a few minutes since
// they only change when the Stripe catalogue does.
func (c *Client) Plans(ctx context.Context) (*PlansResponse, error) {
	plans := &PlansResponse{}
	if cached, err := c.cache.Get([]byte(plansCacheKey)); err == nil {
		if err := json.Unmarshal(cached, plans); err == nil {
			log.Trace("found plans in cache")
			return plans, nil
		} else {
			log.Errorf("unmarshal cached plans: %s", err)
		}
	}

	if err := c.Do(ctx, http.MethodGet, "/boss/plans", nil, plans); err != nil {
		return nil, err
	}

	plansBytes, err := json.Marshal(plans)
	if err != nil {
		log.Errorf("marshal plans for cache: %s", err)
		return plans, nil
	}
	if err := c.cache.Set([]byte(plansCacheKey), plansBytes, plansCacheExpire); err != nil {
		log.Errorf("set plans cache: %s", err)
	}

	return plans, nil
}

func (c *Client) Checkout(ctx context.Context, priceID string) (*CheckoutResponse, error) {
	resp := &CheckoutResponse{}
	if err := c.Do(ctx, http.MethodPost, "/boss/plans/pago", map[string]string{"planId": priceID}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
