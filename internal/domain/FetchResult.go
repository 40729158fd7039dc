package domain

import (
	"time"
)

// FetchRequest descreve uma chamada a um adaptador de plataforma.
// Credential só é usado pela plataforma D, onde todas as contas do pedido
// compartilham o mesmo token de longa duração.
type FetchRequest struct {
	Accounts   []*AdAccount
	Start      time.Time
	End        time.Time
	Credential string
}

// FetchResult carrega as métricas obtidas por (conta externa, data) e as contas
// que falharam dentro do lote.
type FetchResult struct {
	Stats  map[StatKey]Metrics
	Failed map[string]error
}

func NewFetchResult() *FetchResult {
	return &FetchResult{
		Stats:  make(map[StatKey]Metrics),
		Failed: make(map[string]error),
	}
}

// Fail registra a falha de uma conta mantendo o primeiro erro observado
func (r *FetchResult) Fail(accountID string, err error) {
	if _, exists := r.Failed[accountID]; exists {
		return
	}
	r.Failed[accountID] = err
}

// FailAll marca todas as contas do pedido como falhas
func (r *FetchResult) FailAll(accounts []*AdAccount, err error) {
	for _, acc := range accounts {
		r.Fail(acc.ExternalID, err)
	}
}

func (r *FetchResult) FailedFor(accountID string) error {
	return r.Failed[accountID]
}

// MetricsFor retorna as métricas da conta na data, ou zero quando a plataforma não reportou nada
func (r *FetchResult) MetricsFor(accountID string, date time.Time) Metrics {
	return r.Stats[NewStatKey(accountID, date)]
}
