package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	emailRegex        = regexp.MustCompile(`(?i)^[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}$`)
	cedulaFormatRegex = regexp.MustCompile(`^[0-9- ]{6,12}$`)
)

var defaultMessages = map[string]string{
	"required":      "Este campo es obligatorio",
	"required_if":   "Este campo es obligatorio",
	"email_pattern": "Correo electrónico inválido",
	"cedula_format": "Formato de cédula inválido",
	"eqfield":       "Las contraseñas no coinciden",
	"digits":        "Solo se permiten números",
	"oneof":         "Valor no permitido",
}

// FieldErrors maps form field names to the message shown next to them.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, msg := range fe {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

func (fe FieldErrors) Has(field string) bool {
	_, ok := fe[field]
	return ok
}

type Validator struct {
	validate *validator.Validate
	// cache of parsed msg tags per struct field
	messages sync.Map
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister(v, "email_pattern", func(fl validator.FieldLevel) bool {
		return emailRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "cedula_format", func(fl validator.FieldLevel) bool {
		return cedulaFormatRegex.MatchString(fl.Field().String())
	})
	mustRegister(v, "cedula", func(fl validator.FieldLevel) bool {
		return CheckCedula(fl.Field().String()) == nil
	})
	mustRegister(v, "digits", func(fl validator.FieldLevel) bool {
		return IsDigits(fl.Field().String())
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %s", tag, err))
	}
}

// Struct validates form and returns nil or FieldErrors with the first failed
// rule of each field.
func (v *Validator) Struct(form any) error {
	err := v.validate.Struct(form)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	formType := reflect.TypeOf(form)
	for formType.Kind() == reflect.Ptr {
		formType = formType.Elem()
	}

	fieldErrors := FieldErrors{}
	for _, fe := range validationErrs {
		if fieldErrors.Has(fe.Field()) {
			continue
		}
		fieldErrors[fe.Field()] = v.message(formType, fe)
	}

	return fieldErrors
}

func (v *Validator) message(formType reflect.Type, fe validator.FieldError) string {
	if msgs := v.fieldMessages(formType, fe.StructField()); msgs != nil {
		if msg, ok := msgs[fe.Tag()]; ok {
			return msg
		}
	}

	// cedula carries its own detailed message
	if fe.Tag() == "cedula" {
		if err := CheckCedula(fmt.Sprint(fe.Value())); err != nil {
			return err.Error()
		}
	}

	switch fe.Tag() {
	case "min":
		return fmt.Sprintf("Mínimo %s caracteres", fe.Param())
	case "max":
		return fmt.Sprintf("Máximo %s caracteres", fe.Param())
	case "len":
		return fmt.Sprintf("Debe tener %s caracteres", fe.Param())
	}

	if msg, ok := defaultMessages[fe.Tag()]; ok {
		return msg
	}
	return "Valor inválido"
}

// fieldMessages parses the msg tag: `msg:"required=El correo es requerido;email_pattern=Correo electrónico inválido"`.
func (v *Validator) fieldMessages(formType reflect.Type, structField string) map[string]string {
	if formType.Kind() != reflect.Struct {
		return nil
	}

	cacheKey := formType.String() + "." + structField
	if cached, ok := v.messages.Load(cacheKey); ok {
		return cached.(map[string]string)
	}

	field, ok := formType.FieldByName(structField)
	if !ok {
		return nil
	}

	msgs := map[string]string{}
	for _, pair := range strings.Split(field.Tag.Get("msg"), ";") {
		tag, msg, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		msgs[strings.TrimSpace(tag)] = strings.TrimSpace(msg)
	}

	v.messages.Store(cacheKey, msgs)
	return msgs
}
