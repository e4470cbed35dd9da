package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/centinelapos/webapp/internal/backend"
)

// uploads above this size spill to temporary files
const maxUploadMemory = 4 << 20

type loginForm struct {
	Role     string `form:"role" validate:"required,oneof=boss employee"`
	Email    string `form:"email" validate:"required,email_pattern" msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`
	Password string `form:"password,secret" validate:"required,min=8" msg:"required=La contraseña es requerida;min=La contraseña debe tener al menos 8 caracteres"`
}

type adminLoginForm struct {
	Email     string `form:"email" validate:"required" msg:"required=El email es requerido"`
	Password  string `form:"password,secret" validate:"required" msg:"required=La contraseña es requerida"`
	AdminCode string `form:"adminCode,secret" validate:"required" msg:"required=El código de administrador es requerido"`
}

type registerForm struct {
	Role        string `form:"role" validate:"required,oneof=owner employee"`
	Nombres     string `form:"nombres" validate:"required" msg:"required=El nombre es requerido"`
	Apellidos   string `form:"apellidos" validate:"required" msg:"required=El apellido es requerido"`
	Cedula      string `form:"cedula" validate:"required,cedula_format,cedula" msg:"required=La cédula es requerida;cedula_format=Formato de cédula inválido"`
	Email       string `form:"email" validate:"required,email_pattern" msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`
	Password    string `form:"password,secret" validate:"required,min=8" msg:"required=La contraseña es requerida;min=La contraseña debe tener al menos 8 caracteres"`
	CompanyCode string `form:"companyCode" validate:"required_if=Role employee" msg:"required_if=El código es requerido para empleados"`
	Terms       bool   `form:"terms" validate:"required" msg:"required=Debes aceptar los términos y condiciones"`
}

type recoverForm struct {
	Role  string `form:"role" validate:"required,oneof=boss employee"`
	Email string `form:"email" validate:"required,email_pattern" msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`
}

type adminRecoverForm struct {
	Email string `form:"email" validate:"required" msg:"required=El email es requerido"`
}

type resetForm struct {
	Role            string `form:"role" validate:"required,oneof=boss employee"`
	Password        string `form:"password,secret" validate:"required,min=8" msg:"required=La contraseña es requerida;min=Mínimo 8 caracteres"`
	ConfirmPassword string `form:"confirmPassword,secret" validate:"required,eqfield=Password" msg:"required=Confirma tu contraseña"`
}

type adminResetForm struct {
	Password        string `form:"password,secret" validate:"required,min=6" msg:"required=La contraseña es requerida;min=La contraseña debe tener al menos 6 caracteres"`
	ConfirmPassword string `form:"confirmPassword,secret" validate:"required,eqfield=Password" msg:"required=La confirmación de la contraseña es requerida"`
}

type businessForm struct {
	CompanyName  string `form:"companyName" validate:"required,min=3" msg:"required=Este campo es obligatorio;min=Mínimo 3 caracteres"`
	RUC          string `form:"ruc" validate:"required,len=13,digits" msg:"required=Este campo es obligatorio;len=RUC debe tener 13 dígitos;digits=RUC debe tener 13 dígitos"`
	Categoria    string `form:"categoria" validate:"required,oneof=Alimentos Tecnología Ropa Servicios Otros" msg:"required=Seleccione una categoría;oneof=Seleccione una categoría"`
	Telefono     string `form:"telefono" validate:"required,len=10,digits" msg:"required=Este campo es obligatorio;len=Teléfono debe tener 10 dígitos;digits=Teléfono debe tener 10 dígitos"`
	Direccion    string `form:"direccion" validate:"required,min=5" msg:"required=Este campo es obligatorio;min=Mínimo 5 caracteres"`
	EmailNegocio string `form:"emailNegocio" validate:"required,email_pattern" msg:"required=Este campo es obligatorio;email_pattern=Email inválido"`
	Descripcion  string `form:"descripcion" validate:"max=200" msg:"max=Máximo 200 caracteres"`
}

func (f businessForm) input() backend.BusinessInput {
	return backend.BusinessInput{
		CompanyName:  strings.TrimSpace(f.CompanyName),
		RUC:          f.RUC,
		Categoria:    f.Categoria,
		Telefono:     f.Telefono,
		Direccion:    strings.TrimSpace(f.Direccion),
		EmailNegocio: strings.TrimSpace(f.EmailNegocio),
		Descripcion:  strings.TrimSpace(f.Descripcion),
	}
}

var businessCategories = []string{"Alimentos", "Tecnología", "Ropa", "Servicios", "Otros"}

type inviteForm struct {
	CompanyCode string `form:"companyCode" validate:"required" msg:"required=No hay negocio seleccionado para invitar."`
	Email       string `form:"email" validate:"required,email_pattern" msg:"required=El email es obligatorio;email_pattern=Dirección de email no válida"`
}

type profileForm struct {
	Nombres   string `form:"nombres" validate:"required" msg:"required=Nombres son obligatorios"`
	Apellidos string `form:"apellidos" validate:"required" msg:"required=Apellidos son obligatorios"`
	Email     string `form:"email" validate:"required,email_pattern" msg:"required=Email es obligatorio;email_pattern=Correo electrónico inválido"`
	// admins have no cedula on their profile form
	Cedula string `form:"cedula" validate:"omitempty,cedula_format,cedula" msg:"cedula_format=Formato de cédula inválido"`
}

type passwordForm struct {
	Password        string `form:"password,secret" validate:"required,min=6" msg:"required=Contraseña es obligatoria;min=La contraseña debe tener al menos 6 caracteres"`
	ConfirmPassword string `form:"confirmPassword,secret" validate:"required,eqfield=Password" msg:"required=Confirmar contraseña es obligatorio;eqfield=Las contraseñas no coinciden."`
	AdminCode       string `form:"adminCode,secret"`
}

type registerAdminForm struct {
	Nombres   string `form:"nombres" validate:"required" msg:"required=Los nombres son requeridos"`
	Apellidos string `form:"apellidos" validate:"required" msg:"required=Los apellidos son requeridos"`
	Cedula    string `form:"cedula" validate:"required" msg:"required=La cédula es requerida"`
	Email     string `form:"email" validate:"required,email_pattern" msg:"required=El email es requerido;email_pattern=Correo electrónico inválido"`
}

type contactForm struct {
	Name    string `form:"name" validate:"required,max=120" msg:"required=Tu nombre es requerido"`
	Email   string `form:"email" validate:"required,email_pattern" msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`
	Phone   string `form:"phone" validate:"omitempty,max=20"`
	Message string `form:"message" validate:"required,max=2000" msg:"required=Cuéntanos cómo podemos ayudarte"`
}

type newsletterForm struct {
	Email string `form:"email" validate:"required,email_pattern" msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`
}

type formField struct {
	index  int
	name   string
	secret bool
}

func formFields(t reflect.Type) []formField {
	var fields []formField
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("form")
		if tag == "" || tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fields = append(fields, formField{
			index:  i,
			name:   name,
			secret: opts == "secret",
		})
	}
	return fields
}

// decodeForm fills the string and bool fields of dst, a pointer to a form
// struct, from the posted form values.
func decodeForm(r *http.Request, dst any) error {
	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			return fmt.Errorf("parse multipart form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return fmt.Errorf("parse form: %w", err)
	}

	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return errors.New("decode form: destination must be a struct pointer")
	}
	v = v.Elem()

	for _, field := range formFields(v.Type()) {
		raw := r.PostForm.Get(field.name)
		fv := v.Field(field.index)
		switch fv.Kind() {
		case reflect.String:
			if field.secret {
				fv.SetString(raw)
			} else {
				fv.SetString(strings.TrimSpace(raw))
			}
		case reflect.Bool:
			fv.SetBool(raw == "on" || raw == "true" || raw == "1")
		}
	}

	return nil
}

// formValues returns the non secret values of form for re-rendering it.
func formValues(form any) map[string]string {
	v := reflect.ValueOf(form)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	values := map[string]string{}
	for _, field := range formFields(v.Type()) {
		if field.secret {
			continue
		}
		fv := v.Field(field.index)
		switch fv.Kind() {
		case reflect.String:
			values[field.name] = fv.String()
		case reflect.Bool:
			if fv.Bool() {
				values[field.name] = "on"
			}
		}
	}
	return values
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// formUpload returns the optional photo of a multipart form. The returned
// close func is never nil.
func formUpload(r *http.Request, field string) (*backend.Upload, func(), error) {
	noop := func() {}
	if !isMultipart(r) {
		return nil, noop, nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, noop, nil
	}
	if err != nil {
		return nil, noop, fmt.Errorf("read upload %s: %w", field, err)
	}
	if header.Size == 0 {
		_ = file.Close()
		return nil, noop, nil
	}

	return &backend.Upload{
		FieldName:   field,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Content:     file,
	}, func() { _ = file.Close() }, nil
}
