package account

import (
	"errors"
	"fmt"

	"github.com/vfg2006/adstats-sync/pkg/apiErrors"
)

var (
	ErrAccountIDRequired = errors.New("id da conta obrigatório")
	ErrAccountNotFound   = errors.New("conta não encontrada")
	ErrInvalidStatus     = errors.New("status de conta inválido")
	ErrNothingToUpdate   = errors.New("nenhum campo para atualizar")
	ErrInvalidDate       = errors.New("data inválida")
	ErrInvalidValue      = errors.New("valor inválido")
	ErrTokenNotAllowed   = errors.New("token só se aplica a contas da plataforma D")

	ErrDatabaseOperation = errors.New("erro de banco de dados")
	ErrUpdateAccount     = errors.New("erro ao atualizar contas")
	ErrFetchStats        = errors.New("erro ao buscar estatísticas diárias")
	ErrFetchAccounts     = errors.New("erro ao listar contas")
	ErrSaveToken         = errors.New("erro ao gravar token da conta")
)

// AccountError associa o erro de domínio ao código devolvido pela API
type AccountError struct {
	Err       error
	Code      string
	AccountID string
	Details   string
}

func (e *AccountError) Error() string {
	msg := e.Err.Error()
	if e.AccountID != "" {
		msg = fmt.Sprintf("%s (conta %s)", msg, e.AccountID)
	}
	if e.Details != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Details)
	}
	return msg
}

func (e *AccountError) Unwrap() error {
	return e.Err
}

// HTTPStatus é o status correspondente ao código do erro
func (e *AccountError) HTTPStatus() int {
	return apiErrors.StatusFor(e.Code)
}

func NewAccountError(err error, code string, details string) *AccountError {
	return &AccountError{Err: err, Code: code, Details: details}
}

func NewAccountErrorWithID(err error, code string, accountID string, details string) *AccountError {
	return &AccountError{Err: err, Code: code, AccountID: accountID, Details: details}
}
