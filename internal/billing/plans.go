package billing

import (
	"errors"

	"github.com/centinelapos/webapp/internal/backend"
)

const (
	PlanStarter    = "starter"
	PlanBusiness   = "business"
	PlanEnterprise = "enterprise"
)

var ErrNoCheckoutURL = errors.New("No se pudo obtener la URL de pago.")

// stripeNicknames maps purchasable plans to the nickname of their Stripe price.
var stripeNicknames = map[string]string{
	PlanBusiness:   "Plan Business",
	PlanEnterprise: "Plan Personalizado",
}

type Plan struct {
	ID          string
	Name        string
	Price       string
	Period      string
	Description string
	Features    []string
	CTA         string
	Popular     bool
	Disabled    bool
	// PriceID is the Stripe price to check out, empty until merged
	PriceID string
}

// Purchasable reports whether the plan can be sent to checkout.
func (p Plan) Purchasable() bool {
	return !p.Disabled && p.PriceID != ""
}

func Catalogue() []Plan {
	return []Plan{
		{
			ID:          PlanStarter,
			Name:        "Starter",
			Price:       "Gratis",
			Description: "Perfecto para comenzar y probar nuestras funcionalidades básicas",
			Features: []string{
				"Sistema POS completo (CRUD)",
				"15 días de prueba del módulo de IA",
				"Registro de 1 local/negocio",
				"Soporte básico por correo",
				"Actualizaciones de seguridad",
			},
			CTA:      "Plan Actual",
			Disabled: true,
		},
		{
			ID:          PlanBusiness,
			Name:        "Business",
			Price:       "$299",
			Period:      "/mes",
			Description: "Ideal para negocios en crecimiento con múltiples locales",
			Features: []string{
				"Todo en el plan Starter",
				"Análisis avanzado de ventas",
				"Seguimiento de rendimiento de empleados",
				"Registro de hasta 3 locales",
				"Soporte prioritario 24/5",
				"Reportes personalizados",
				"Integración con herramientas externas",
			},
			CTA:     "Comprar Plan Business",
			Popular: true,
		},
		{
			ID:          PlanEnterprise,
			Name:        "Enterprise",
			Price:       "$599",
			Period:      "/mes",
			Description: "Solución completa para cadenas y franquicias",
			Features: []string{
				"Todo en el plan Business",
				"Locales ilimitados",
				"Dashboard ejecutivo",
				"API completa para desarrolladores",
				"Entrenamiento personalizado de IA",
				"Soporte VIP 24/7",
				"Gerente de cuenta dedicado",
				"Migración asistida",
			},
			CTA: "Comprar Plan Enterprise",
		},
	}
}

// MergePrices returns a copy of plans with the Stripe price ids filled in by
// nickname. Plans without a matching price keep an empty PriceID.
func MergePrices(plans []Plan, prices []backend.Price) []Plan {
	merged := make([]Plan, len(plans))
	copy(merged, plans)

	for i := range merged {
		nickname, ok := stripeNicknames[merged[i].ID]
		if !ok {
			continue
		}
		merged[i].PriceID = ""
		for _, price := range prices {
			if price.Nickname == nickname {
				merged[i].PriceID = price.ID
				break
			}
		}
	}

	return merged
}

// CheckoutURL validates the checkout answer of the API.
func CheckoutURL(resp *backend.CheckoutResponse) (string, error) {
	if resp == nil || resp.URL == "" {
		return "", ErrNoCheckoutURL
	}
	return resp.URL, nil
}

type PaymentResult string

const (
	PaymentNone     PaymentResult = ""
	PaymentSuccess  PaymentResult = "success"
	PaymentCanceled PaymentResult = "canceled"
)

// ParsePaymentResult reads the flags Stripe appends to the return URL.
func ParsePaymentResult(success, canceled string) PaymentResult {
	switch {
	case success == "true":
		return PaymentSuccess
	case canceled == "true":
		return PaymentCanceled
	default:
		return PaymentNone
	}
}

func (r PaymentResult) Message() string {
	switch r {
	case PaymentSuccess:
		return "¡Pago realizado con éxito! Tu plan se ha actualizado."
	case PaymentCanceled:
		return "Pago cancelado. Puedes intentarlo de nuevo."
	default:
		return ""
	}
}
