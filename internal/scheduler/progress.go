package scheduler

import (
	"sync"

	"github.com/vfg2006/adstats-sync/internal/domain"
	"github.com/vfg2006/adstats-sync/pkg/log"
)

// EmitFunc recebe os eventos de progresso de uma execução. Pode ser chamada
// por vários workers ao mesmo tempo.
type EmitFunc func(domain.ProgressEvent)

// EventStream entrega os eventos de uma execução em ordem a um único
// consumidor. Se o consumidor se desconecta, os eventos seguintes são
// descartados e a execução continua normalmente.
type EventStream struct {
	mu       sync.Mutex
	ch       chan domain.ProgressEvent
	detached chan struct{}
	detach   sync.Once
	closed   bool
}

func NewEventStream(buffer int) *EventStream {
	return &EventStream{
		ch:       make(chan domain.ProgressEvent, buffer),
		detached: make(chan struct{}),
	}
}

func (s *EventStream) Events() <-chan domain.ProgressEvent {
	return s.ch
}

// Emit bloqueia até o consumidor receber o evento ou se desconectar
func (s *EventStream) Emit(ev domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
	case <-s.detached:
	}
}

// Detach indica que o consumidor parou de ler
func (s *EventStream) Detach() {
	s.detach.Do(func() { close(s.detached) })
}

// Close encerra o canal de eventos; chamado pelo produtor ao fim da execução
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// emitter serializa os eventos, registra cada um no log e repassa ao destino
type emitter struct {
	mu    sync.Mutex
	runID string
	run   string
	sink  EmitFunc
}

func newEmitter(run, runID string, sink EmitFunc) *emitter {
	return &emitter{run: run, runID: runID, sink: sink}
}

func (e *emitter) emit(ev domain.ProgressEvent) {
	entry := log.ForRun(e.run, e.runID).WithField("type", ev.Kind)
	if ev.AccountID != "" {
		entry = entry.WithField("account_id", ev.AccountID)
	}
	if ev.Date != "" {
		entry = entry.WithField("date", ev.Date)
	}

	switch {
	case ev.Kind == domain.EventKindCritical:
		entry.Error(ev.Message)
	case ev.Error:
		entry.Warn(ev.Message)
	default:
		entry.Info(ev.Message)
	}

	if e.sink == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.sink(ev)
}

func (e *emitter) info(msg string) {
	e.emit(domain.ProgressEvent{Message: msg, Kind: domain.EventKindInfo})
}

func (e *emitter) critical(msg string) {
	e.emit(domain.ProgressEvent{Message: msg, Error: true, Kind: domain.EventKindCritical})
}

func (e *emitter) done(summary *domain.RunSummary, msg string) {
	e.emit(domain.ProgressEvent{
		Message: msg,
		Error:   summary.Aborted,
		Done:    true,
		Kind:    domain.EventKindSummary,
	})
}
