package rdomain

import (
	"fmt"

	"github.com/vfg2006/adstats-sync/pkg/utils"
)

// Códigos conhecidos do envelope de resposta
const (
	StatusOK           = 0
	StatusUpstreamFail = 1000
	StatusDailyQuota   = 1003
)

var statusLabels = map[int64]string{
	StatusUpstreamFail: "falha na API da plataforma R",
	StatusDailyQuota:   "limite diário de consultas atingido",
}

type Status struct {
	Code    utils.FlexInt `json:"code"`
	Message string        `json:"message"`
}

type ReportResponse struct {
	Status Status `json:"status"`
	Data   struct {
		Data []ReportItem `json:"data"`
	} `json:"data"`
}

// ReportItem é uma linha do relatório agrupada por dia e conta
type ReportItem struct {
	Day            string            `json:"day"`
	UserID         utils.FlexString  `json:"user_id"`
	PaymentRevenue utils.FlexDecimal `json:"payment_revenue"`
	Impression     utils.FlexInt     `json:"impression"`
	Click          utils.FlexInt     `json:"click"`
	Behavior0      utils.FlexInt     `json:"behavior0"`
	Behavior1      utils.FlexInt     `json:"behavior1"`
	Behavior2      utils.FlexInt     `json:"behavior2"`
	Behavior3      utils.FlexInt     `json:"behavior3"`
	Behavior4      utils.FlexInt     `json:"behavior4"`
	Behavior5      utils.FlexInt     `json:"behavior5"`
	Behavior6      utils.FlexInt     `json:"behavior6"`
}

// Behavior retorna o contador do slot informado (behavior0 a behavior6)
func (i ReportItem) Behavior(slot string) int64 {
	switch slot {
	case "behavior0":
		return i.Behavior0.Int64()
	case "behavior1":
		return i.Behavior1.Int64()
	case "behavior2":
		return i.Behavior2.Int64()
	case "behavior3":
		return i.Behavior3.Int64()
	case "behavior4":
		return i.Behavior4.Int64()
	case "behavior5":
		return i.Behavior5.Int64()
	case "behavior6":
		return i.Behavior6.Int64()
	}
	return 0
}

// APIError representa um código de status diferente de zero no envelope
type APIError struct {
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	if label, ok := statusLabels[e.Code]; ok {
		return fmt.Sprintf("plataforma R código %d (%s): %s", e.Code, label, e.Message)
	}
	return fmt.Sprintf("plataforma R código %d: %s", e.Code, e.Message)
}
