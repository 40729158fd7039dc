package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool é um conjunto limitado de goroutines. Tarefas submetidas depois do
// cancelamento do contexto de despacho não são executadas; as já iniciadas
// terminam normalmente e Wait aguarda todas.
type Pool struct {
	group *errgroup.Group
	ctx   context.Context
}

// New cria um pool com no máximo size tarefas simultâneas
func New(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}

	group := &errgroup.Group{}
	group.SetLimit(size)

	return &Pool{group: group, ctx: ctx}
}

// Go bloqueia até haver vaga e então executa fn. Retorna false se o contexto
// de despacho foi cancelado antes de a tarefa ser iniciada.
func (p *Pool) Go(fn func()) bool {
	if p.ctx.Err() != nil {
		return false
	}

	p.group.Go(func() error {
		fn()
		return nil
	})
	return true
}

// Wait drena o pool
func (p *Pool) Wait() {
	_ = p.group.Wait()
}
