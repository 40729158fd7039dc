package domain

type EventKind string

const (
	EventKindInfo     EventKind = "info"
	EventKindAccount  EventKind = "account"
	EventKindBackfill EventKind = "backfill"
	EventKindSummary  EventKind = "summary"
	EventKindCritical EventKind = "critical"
)

// ProgressEvent é uma mensagem do fluxo de progresso de uma execução
type ProgressEvent struct {
	Message   string    `json:"message"`
	Error     bool      `json:"error,omitempty"`
	Done      bool      `json:"done,omitempty"`
	Kind      EventKind `json:"type,omitempty"`
	AccountID string    `json:"account_id,omitempty"`
	Date      string    `json:"date,omitempty"`
}

// RunSummary resume o resultado de uma execução de sincronização ou reconciliação
type RunSummary struct {
	RunID     string `json:"run_id"`
	Accounts  int    `json:"accounts"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
	Rows      int    `json:"rows"`
	Aborted   bool   `json:"aborted"`
}
