package rdomain

import (
	"strings"
)

// ConversionSlots mapeia o nome do evento de conversão para o contador do relatório
var ConversionSlots = map[string]string{
	"ViewContent":          "behavior0",
	"CompleteCheckout":     "behavior1",
	"Checkout":             "behavior2",
	"Bookmark":             "behavior3",
	"AddToCart":            "behavior4",
	"Search":               "behavior5",
	"CompleteRegistration": "behavior6",
}

func isSlotName(name string) bool {
	for _, slot := range ConversionSlots {
		if slot == name {
			return true
		}
	}
	return false
}

// ResolveSlots converte a definição de conversão da conta em slots, sem repetição
// e na ordem da definição. Nomes desconhecidos são devolvidos separadamente.
func ResolveSlots(definition []string) (slots []string, unknown []string) {
	seen := make(map[string]struct{}, len(definition))

	for _, name := range definition {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		slot, ok := ConversionSlots[name]
		if !ok && isSlotName(name) {
			slot, ok = name, true
		}
		if !ok {
			unknown = append(unknown, name)
			continue
		}

		if _, dup := seen[slot]; dup {
			continue
		}
		seen[slot] = struct{}{}
		slots = append(slots, slot)
	}

	return slots, unknown
}

// Conversions soma apenas os slots selecionados; sem slots o resultado é zero
func (i ReportItem) Conversions(slots []string) int64 {
	var total int64
	for _, slot := range slots {
		total += i.Behavior(slot)
	}
	return total
}
