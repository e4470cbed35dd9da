package validation

import (
	"errors"
	"strings"
)

var (
	ErrCedulaLength   = errors.New("La cédula debe tener entre 9 y 12 dígitos")
	ErrCedulaDigits   = errors.New("La cédula solo debe contener números")
	ErrCedulaProvince = errors.New("Código de provincia inválido (debe ser entre 01-07)")
	ErrCedulaFirst    = errors.New("Primer dígito inválido para cédula de 12 caracteres")
)

// CheckCedula validates a national id after removing dashes and spaces.
// An empty value is left to the required rule.
func CheckCedula(cedula string) error {
	clean := strings.NewReplacer("-", "", " ", "").Replace(cedula)
	if clean == "" {
		return nil
	}

	if len(clean) < 9 || len(clean) > 12 {
		return ErrCedulaLength
	}
	if !IsDigits(clean) {
		return ErrCedulaDigits
	}

	switch len(clean) {
	case 9:
		province := int(clean[0]-'0')*10 + int(clean[1]-'0')
		if province < 1 || province > 7 {
			return ErrCedulaProvince
		}
	case 12:
		if clean[0] != '1' && clean[0] != '2' {
			return ErrCedulaFirst
		}
	}

	return nil
}

func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
