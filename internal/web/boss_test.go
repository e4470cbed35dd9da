package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/centinelapos/webapp/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const businessJSON = `{
	"_id": "biz-1",
	"companyName": "Café Central",
	"companyCode": "CAF001",
	"ruc": "1790012345001",
	"categoria": "Alimentos",
	"telefono": "0991234567",
	"direccion": "Av. Amazonas 123",
	"emailNegocio": "cafe@central.com",
	"descripcion": "Cafetería",
	"emailBoss": "boss-1",
	"empleados": [{"_id": "emp-1", "nombres": "Luis", "apellidos": "Mora", "email": "luis@centinela.com", "rol": "empleado"}]
}`

func validBusiness() url.Values {
	return url.Values{
		"companyName":  {"Café Central"},
		"ruc":          {"1790012345001"},
		"categoria":    {"Alimentos"},
		"telefono":     {"0991234567"},
		"direccion":    {"Av. Amazonas 123"},
		"emailNegocio": {"cafe@central.com"},
		"descripcion":  {"Cafetería"},
	}
}

func TestBossDashboard_ListsBusinesses(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("GET /api/negocios/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tkn-boss-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"companyNames":[` + businessJSON + `]}`))
	})

	rr := app.get("/dashboard/admin")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Café Central")
	assert.Contains(t, body, "CAF001")
	assert.Contains(t, body, testBasePath+"/dashboard/admin/negocios/biz-1")
}

func TestBossDashboard_NoBusinesses(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("GET /api/negocios/list", http.StatusNotFound, map[string]string{"msg": "No existen negocios"})

	rr := app.get("/dashboard/admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), noBusinesses)
	assert.NotContains(t, rr.Body.String(), "toast-error")
}

func TestBossDashboard_APIDown(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("GET /api/negocios/list", http.StatusInternalServerError, map[string]string{})

	rr := app.get("/dashboard/admin")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Error al cargar la lista de negocios.")
}

func TestBusinessCreate_Multipart(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("POST /api/negocios/create", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Café Central", r.FormValue("companyName"))
		assert.Equal(t, "ana@centinela.com", r.FormValue("emailBoss"))

		file, header, err := r.FormFile("logo")
		require.NoError(t, err)
		defer file.Close()
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "logo.png", header.Filename)
		assert.Equal(t, []byte("png-bytes"), content)

		_, _ = w.Write([]byte(`{"msg":"Negocio creado"}`))
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range validBusiness() {
		require.NoError(t, mw.WriteField(k, v[0]))
	}
	part, err := mw.CreateFormFile("logo", "logo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, testBasePath+"/dashboard/admin/negocios", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(app.cookies[session.CookieName])
	rr := httptest.NewRecorder()
	app.router.ServeHTTP(rr, req)

	assertRedirect(t, rr, "/dashboard/admin")
	assertFlash(t, app.flashes(), session.FlashSuccess, "Negocio registrado exitosamente.")
}

func TestBusinessCreate_Validation(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))

	form := validBusiness()
	form.Set("ruc", "12345")
	form.Set("telefono", "09912345ab")
	form.Set("categoria", "Juguetes")

	rr := app.post("/dashboard/admin/negocios", form)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "RUC debe tener 13 dígitos")
	assert.Contains(t, body, "Teléfono debe tener 10 dígitos")
	assert.Contains(t, body, "Seleccione una categoría")
	assert.Contains(t, body, `value="Café Central"`)
}

func TestBusinessEditAndUpdate(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("GET /api/negocios/detail/biz-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(businessJSON))
	})
	app.api.HandleFunc("PUT /api/negocios/update/biz-1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Café Norte", r.FormValue("companyName"))
		_, _ = w.Write([]byte(`{"msg":"ok"}`))
	})

	rr := app.get("/dashboard/admin/negocios/biz-1/editar")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `value="1790012345001"`)
	assert.Contains(t, rr.Body.String(), `<option value="Alimentos" selected>`)

	form := validBusiness()
	form.Set("companyName", "Café Norte")
	rr = app.post("/dashboard/admin/negocios/biz-1", form)
	assertRedirect(t, rr, "/dashboard/admin/negocios/biz-1")
	assertFlash(t, app.flashes(), session.FlashSuccess, "Negocio actualizado exitosamente.")
}

func TestBusinessDetail(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("GET /api/negocios/detail/biz-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(businessJSON))
	})

	rr := app.get("/dashboard/admin/negocios/biz-1")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Luis Mora")
	assert.Contains(t, body, `name="companyCode" value="CAF001"`)
}

func TestBusinessDetail_Error(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("GET /api/negocios/detail/biz-x", http.StatusNotFound, map[string]string{})

	rr := app.get("/dashboard/admin/negocios/biz-x")
	assertRedirect(t, rr, "/dashboard/admin")
	assertFlash(t, app.flashes(), session.FlashError, "Error al cargar el detalle del negocio.")
}

func TestInviteEmployee(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("POST /api/negocios/add-employee", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "nuevo@mail.com", body["emailEmpleado"])
		assert.Equal(t, "ana@centinela.com", body["emailJefe"])
		assert.Equal(t, "CAF001", body["companyCode"])
		_, _ = w.Write([]byte(`{}`))
	})

	rr := app.post("/dashboard/admin/empleados/invitar", url.Values{
		"companyCode": {"caf001"},
		"email":       {"Nuevo@Mail.com"},
		"business":    {"biz-1"},
	})
	assertRedirect(t, rr, "/dashboard/admin/negocios/biz-1")
	assertFlash(t, app.flashes(), session.FlashSuccess, "Empleado invitado exitosamente")
}

func TestInviteEmployee_InvalidEmail(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))

	rr := app.post("/dashboard/admin/empleados/invitar", url.Values{
		"companyCode": {"CAF001"},
		"email":       {"nuevo"},
		"business":    {"biz-1"},
	})
	assertRedirect(t, rr, "/dashboard/admin/negocios/biz-1")
	assertFlash(t, app.flashes(), session.FlashError, "Dirección de email no válida")
}

func TestDeleteEmployee(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("DELETE /api/negocios/delete-employee/emp-1", http.StatusOK, map[string]string{"msg": "Empleado eliminado"})

	rr := app.post("/dashboard/admin/empleados/emp-1/eliminar", url.Values{"business": {"biz-1"}})
	assertRedirect(t, rr, "/dashboard/admin/negocios/biz-1")
	assertFlash(t, app.flashes(), session.FlashSuccess, "Empleado eliminado")
}

func TestUpgradePlan_MergesPrices(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("GET /api/boss/plans", http.StatusOK, map[string]any{
		"prices": map[string]any{
			"data": []map[string]any{
				{"id": "price_business", "nickname": "Plan Business", "unit_amount": 2900, "currency": "usd"},
			},
		},
	})

	rr := app.get("/dashboard/upgrade-plan")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `name="priceId" value="price_business"`)
	assert.Equal(t, 1, bytes.Count([]byte(body), []byte(`name="priceId"`)))
}

func TestUpgradePlan_APIDown(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("GET /api/boss/plans", http.StatusBadGateway, map[string]string{})

	rr := app.get("/dashboard/upgrade-plan")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Hubo un error al cargar los planes.")
	assert.NotContains(t, rr.Body.String(), `name="priceId"`)
}

func TestCheckout(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.api.HandleFunc("POST /api/boss/plans/pago", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "price_business", body["planId"])
		_, _ = w.Write([]byte(`{"url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	})

	rr := app.post("/dashboard/upgrade-plan/checkout", url.Values{"priceId": {"price_business"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", rr.Header().Get("Location"))
}

func TestCheckout_NoURL(t *testing.T) {
	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	app.apiJSON("POST /api/boss/plans/pago", http.StatusOK, map[string]string{})

	rr := app.post("/dashboard/upgrade-plan/checkout", url.Values{"priceId": {"price_business"}})
	assertRedirect(t, rr, "/dashboard/upgrade-plan")
	assertFlash(t, app.flashes(), session.FlashError, "No se pudo obtener la URL de pago.")
}

func TestPaymentResult(t *testing.T) {
	testCases := []struct {
		query    string
		expected string
		kind     session.FlashKind
		msg      string
	}{
		{"success=true", "/dashboard/admin", session.FlashSuccess, "¡Pago realizado con éxito! Tu plan se ha actualizado."},
		{"canceled=true", "/dashboard/upgrade-plan", session.FlashInfo, "Pago cancelado. Puedes intentarlo de nuevo."},
	}

	for _, tc := range testCases {
		t.Run(tc.query, func(t *testing.T) {
			app := newTestApp(t)
			app.signIn(copyUser(testBoss))

			rr := app.get("/dashboard/upgrade-plan/result?" + tc.query)
			assertRedirect(t, rr, tc.expected)
			assertFlash(t, app.flashes(), tc.kind, tc.msg)
		})
	}

	app := newTestApp(t)
	app.signIn(copyUser(testBoss))
	assertRedirect(t, app.get("/dashboard/upgrade-plan/result"), "/dashboard/upgrade-plan")
}
