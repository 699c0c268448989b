// Package worker contains the default [domain.Runner], a bounded goroutine
// pool backed by ants.
package worker

import (
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

// DefaultSize is the number of workers used when no size is given.
const DefaultSize = 16

// Runner implements domain.Runner.
type Runner struct {
	pool *ants.Pool
	log  *zap.SugaredLogger
	wg   sync.WaitGroup
}

// NewRunner returns a new implementation of domain.Runner.
func NewRunner(opts ...domain.RunnerOption) (domain.Runner, error) {
	options := domain.RunnerOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Size <= 0 {
		options.Size = DefaultSize
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop().Sugar()
	}

	r := &Runner{log: options.Logger}
	pool, err := ants.NewPool(options.Size,
		ants.WithPanicHandler(func(v any) {
			r.log.Errorw("async task panicked", "panic", v)
		}),
		ants.WithLogger(printfLogger{options.Logger}),
	)
	if err != nil {
		return nil, err
	}
	r.pool = pool
	return r, nil
}

// Submit implements domain.Runner. It blocks while every worker is busy and
// fails with ants.ErrPoolClosed after Release.
func (r *Runner) Submit(fn func()) error {
	r.wg.Add(1)
	err := r.pool.Submit(func() {
		defer r.wg.Done()
		fn()
	})
	if err != nil {
		r.wg.Done()
	}
	return err
}

// Release implements domain.Runner. Tasks already submitted run to
// completion before it returns.
func (r *Runner) Release() {
	r.pool.Release()
	r.wg.Wait()
}

// printfLogger adapts a zap logger to ants.Logger.
type printfLogger struct{ log *zap.SugaredLogger }

func (l printfLogger) Printf(format string, args ...any) {
	l.log.Debugf(format, args...)
}
