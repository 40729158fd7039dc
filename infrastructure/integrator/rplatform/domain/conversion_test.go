package rdomain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

func TestResolveSlots(t *testing.T) {
	tests := []struct {
		name        string
		definition  []string
		wantSlots   []string
		wantUnknown []string
	}{
		{
			name:       "Eventos conhecidos",
			definition: []string{"CompleteCheckout", "AddToCart"},
			wantSlots:  []string{"behavior1", "behavior4"},
		},
		{
			name:       "Slots crus são aceitos",
			definition: []string{"behavior6", " ViewContent "},
			wantSlots:  []string{"behavior6", "behavior0"},
		},
		{
			name:       "Slots repetidos contam uma vez",
			definition: []string{"Search", "behavior5"},
			wantSlots:  []string{"behavior5"},
		},
		{
			name:        "Eventos desconhecidos são separados",
			definition:  []string{"Purchase", "Checkout"},
			wantSlots:   []string{"behavior2"},
			wantUnknown: []string{"Purchase"},
		},
		{
			name:       "Definição vazia",
			definition: nil,
			wantSlots:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, unknown := ResolveSlots(tt.definition)
			assert.Equal(t, tt.wantSlots, slots)
			assert.Equal(t, tt.wantUnknown, unknown)
		})
	}
}

func TestReportItem_Conversions(t *testing.T) {
	item := ReportItem{
		Behavior0: utils.FlexInt(7),
		Behavior1: utils.FlexInt(2),
		Behavior4: utils.FlexInt(5),
	}

	slots, _ := ResolveSlots([]string{"CompleteCheckout", "AddToCart"})
	assert.Equal(t, int64(7), item.Conversions(slots))

	// Sem definição não há conversões mesmo com contadores preenchidos
	assert.Equal(t, int64(0), item.Conversions(nil))
}
