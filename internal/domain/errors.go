package domain

import (
	"errors"
	"fmt"
)

// Taxonomia de erros da sincronização
var (
	// Erros recuperáveis por unidade
	ErrTransientNetwork  = errors.New("falha transitória de rede")
	ErrAuth              = errors.New("credencial expirada ou inválida")
	ErrRateLimit         = errors.New("limite de requisições excedido")
	ErrDataShape         = errors.New("formato de dados inesperado")
	ErrCredentialMissing = errors.New("credencial não encontrada")
	ErrSpanTooLarge      = errors.New("janela de datas maior que o permitido")

	// Erros fatais para a execução
	ErrStoreUnavailable    = errors.New("armazenamento de estatísticas indisponível")
	ErrRegistryUnavailable = errors.New("cadastro de contas indisponível")

	ErrInvalidTransition = errors.New("transição de estado inválida")
	ErrRunInProgress     = errors.New("execução já em andamento")
	ErrAccountNotFound   = errors.New("conta não encontrada")
)

// SyncError é um erro com contexto de conta e data
type SyncError struct {
	Kind      error
	AccountID string
	Date      string
	Err       error
}

func NewSyncError(kind error, accountID, date string, err error) *SyncError {
	return &SyncError{
		Kind:      kind,
		AccountID: accountID,
		Date:      date,
		Err:       err,
	}
}

// Error implementa a interface error
func (e *SyncError) Error() string {
	msg := e.Kind.Error()
	if e.AccountID != "" {
		msg = fmt.Sprintf("%s (conta %s", msg, e.AccountID)
		if e.Date != "" {
			msg = fmt.Sprintf("%s, data %s", msg, e.Date)
		}
		msg += ")"
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err.Error())
	}
	return msg
}

// Unwrap expõe o tipo e a causa para errors.Is e errors.As
func (e *SyncError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsRetryable indica se a unidade pode ser tentada novamente
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientNetwork) || errors.Is(err, ErrRateLimit)
}

// IsFatal indica se a execução inteira deve ser interrompida
func IsFatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrRegistryUnavailable)
}
