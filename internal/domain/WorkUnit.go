package domain

import (
	"fmt"
	"time"
)

type UnitState string

const (
	UnitStatePending  UnitState = "PENDING"
	UnitStateFetching UnitState = "FETCHING"
	UnitStateSuccess  UnitState = "SUCCESS"
	UnitStateFailed   UnitState = "FAILED"
)

var allowedTransitions = map[UnitState][]UnitState{
	UnitStatePending:  {UnitStateFetching},
	UnitStateFetching: {UnitStateSuccess, UnitStateFailed},
	UnitStateFailed:   {UnitStatePending},
}

// WorkUnit é uma unidade de sincronização: uma conta e uma janela de datas contígua
type WorkUnit struct {
	Account  *AdAccount
	Start    time.Time
	End      time.Time
	State    UnitState
	Attempts int
	LastErr  error
}

func NewWorkUnit(account *AdAccount, start, end time.Time) *WorkUnit {
	return &WorkUnit{
		Account: account,
		Start:   start,
		End:     end,
		State:   UnitStatePending,
	}
}

// Transition move a unidade para o próximo estado; nenhuma transição pula FETCHING
func (u *WorkUnit) Transition(to UnitState) error {
	for _, allowed := range allowedTransitions[u.State] {
		if allowed == to {
			if to == UnitStateFetching {
				u.Attempts++
			}
			u.State = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, u.State, to)
}

func (u *WorkUnit) Done() bool {
	return u.State == UnitStateSuccess
}
