package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vfg2006/adstats-sync/pkg/utils"
)

type Platform string

const (
	PlatformR Platform = "R"
	PlatformD Platform = "D"
)

func (p Platform) Valid() bool {
	return p == PlatformR || p == PlatformD
}

type AdAccountStatus string

const (
	AdAccountStatusActive   AdAccountStatus = "active"
	AdAccountStatusArchived AdAccountStatus = "archived"
)

func (s AdAccountStatus) Valid() bool {
	return s == AdAccountStatusActive || s == AdAccountStatusArchived
}

type AdAccount struct {
	ID                   string           `json:"id"`
	Platform             Platform         `json:"platform"`
	ExternalID           string           `json:"external_id"`
	Name                 string           `json:"name"`
	CredentialRef        *string          `json:"credential_ref,omitempty"`
	Agent                *string          `json:"agent,omitempty"`
	StartDate            time.Time        `json:"start_date"`
	EndDate              *time.Time       `json:"end_date,omitempty"`
	ConversionDefinition []string         `json:"conversion_definition"`
	OwnerEmail           *string          `json:"owner_email,omitempty"`
	Status               AdAccountStatus  `json:"status"`
	Budget               decimal.Decimal  `json:"budget"`
	CPCGoal              *decimal.Decimal `json:"cpc_goal,omitempty"`
	CPAGoal              *decimal.Decimal `json:"cpa_goal,omitempty"`
}

// CredentialKey retorna a chave usada para buscar o token da conta
func (a *AdAccount) CredentialKey() string {
	if a.CredentialRef != nil && *a.CredentialRef != "" {
		return *a.CredentialRef
	}
	return a.ExternalID
}

// AgentID retorna o agente da conta ou vazio quando não definido
func (a *AdAccount) AgentID() string {
	if a.Agent == nil {
		return ""
	}
	return *a.Agent
}

type UpdateAccountStatusRequest struct {
	AccountIDs []string        `json:"account_ids"`
	Status     AdAccountStatus `json:"status"`
}

type UpdateAccountStatusResponse struct {
	Updated int64           `json:"updated"`
	Status  AdAccountStatus `json:"status"`
}

// AccountDailyStatsResponse lista as linhas diárias da conta, da mais recente para a mais antiga
type AccountDailyStatsResponse struct {
	AccountID  string               `json:"account_id"`
	ExternalID string               `json:"external_id"`
	Platform   Platform             `json:"platform"`
	StartDate  string               `json:"start_date"`
	EndDate    string               `json:"end_date"`
	Stats      []*DailyStatResponse `json:"stats"`
}

// AdAccountFilter restringe a listagem de contas ativas
type AdAccountFilter struct {
	OwnerEmail string
	Search     string
}

// AdAccountResponse é a conta listada com o acompanhamento do gasto no período
type AdAccountResponse struct {
	*AdAccount
	HasToken         bool            `json:"has_token"`
	TotalSpend       decimal.Decimal `json:"total_spend"`
	TotalConversions int64           `json:"total_conversions"`
	TotalClicks      int64           `json:"total_clicks"`
	YesterdaySpend   decimal.Decimal `json:"yesterday_spend"`
	RemainingDays    int             `json:"remaining_days"`
	DailyBudget      decimal.Decimal `json:"daily_budget"`
	PacingPercent    decimal.Decimal `json:"pacing_percent"`
	BudgetPercent    decimal.Decimal `json:"budget_percent"`
	CurrentCPC       decimal.Decimal `json:"current_cpc"`
	CurrentCPA       decimal.Decimal `json:"current_cpa"`
}

var hundred = decimal.NewFromInt(100)

// ApplyProgress calcula o acompanhamento a partir dos totais do período e do
// gasto de ontem. today e yesterday são datas civis no fuso de negócio.
//
// O orçamento diário é o saldo dividido pelos dias restantes, hoje incluso,
// e fica negativo quando a conta já passou do orçamento. Sem end_date não há
// dias restantes nem ritmo esperado.
func (r *AdAccountResponse) ApplyProgress(totals Metrics, yesterdaySpend decimal.Decimal, today, yesterday time.Time) {
	acc := r.AdAccount
	start := utils.CivilDate(acc.StartDate)

	r.TotalSpend = totals.Spend
	r.TotalConversions = totals.Conversions
	r.TotalClicks = totals.Clicks
	r.CurrentCPC = totals.CPC()
	r.CurrentCPA = totals.CPA()

	r.YesterdaySpend = decimal.Zero
	if acc.Covers(yesterday) {
		r.YesterdaySpend = yesterdaySpend
	}

	r.BudgetPercent = decimal.Zero
	if acc.Budget.IsPositive() {
		r.BudgetPercent = totals.Spend.Div(acc.Budget).Mul(hundred).Round(2)
	}

	r.RemainingDays = 0
	r.DailyBudget = decimal.Zero
	r.PacingPercent = decimal.Zero
	if acc.EndDate == nil {
		return
	}

	end := utils.CivilDate(*acc.EndDate)
	totalDays := max(daysBetween(start, end)+1, 1)

	switch {
	case today.Before(start):
		r.RemainingDays = totalDays
	case today.After(end):
		r.RemainingDays = 0
	default:
		r.RemainingDays = daysBetween(today, end) + 1
	}

	if r.RemainingDays > 0 {
		r.DailyBudget = acc.Budget.Sub(totals.Spend).Div(decimal.NewFromInt(int64(r.RemainingDays))).Round(2)
	}

	daysPassed := min(max(daysBetween(start, today), 0), totalDays)
	expected := r.DailyBudget.Mul(decimal.NewFromInt(int64(daysPassed)))
	if expected.IsPositive() {
		r.PacingPercent = totals.Spend.Div(expected).Mul(hundred).Round(2)
	}
}

// Covers indica se a data está dentro do período de veiculação da conta
func (a *AdAccount) Covers(date time.Time) bool {
	date = utils.CivilDate(date)
	if date.Before(utils.CivilDate(a.StartDate)) {
		return false
	}
	return a.EndDate == nil || !date.After(utils.CivilDate(*a.EndDate))
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

// UpdateAdAccountRequest altera apenas os campos informados. EndDate ou Agent
// vazios removem o valor; Token é o token de longa duração da plataforma D.
type UpdateAdAccountRequest struct {
	ID        string           `json:"-"`
	Budget    *decimal.Decimal `json:"budget,omitempty"`
	StartDate *string          `json:"start_date,omitempty"`
	EndDate   *string          `json:"end_date,omitempty"`
	Agent     *string          `json:"agent,omitempty"`
	CPCGoal   *decimal.Decimal `json:"cpc_goal,omitempty"`
	CPAGoal   *decimal.Decimal `json:"cpa_goal,omitempty"`
	Token     *string          `json:"d_token,omitempty"`
}

// HasAccountChanges indica se há campos da própria conta a gravar, além do token
func (r *UpdateAdAccountRequest) HasAccountChanges() bool {
	return r.Budget != nil || r.StartDate != nil || r.EndDate != nil ||
		r.Agent != nil || r.CPCGoal != nil || r.CPAGoal != nil
}

// TokenValue devolve o token informado sem espaços, ou vazio
func (r *UpdateAdAccountRequest) TokenValue() string {
	if r.Token == nil {
		return ""
	}
	return strings.TrimSpace(*r.Token)
}

type UpdateAdAccountResponse struct {
	Account      *AdAccount `json:"account"`
	TokenUpdated bool       `json:"token_updated"`
}
