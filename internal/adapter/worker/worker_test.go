package worker

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vinicius-lino-figueiredo/gedbq/domain"
)

type WorkerTestSuite struct {
	suite.Suite
	logs   *observer.ObservedLogs
	runner domain.Runner
}

func (s *WorkerTestSuite) SetupTest() {
	core, logs := observer.New(zap.ErrorLevel)
	s.logs = logs
	var err error
	s.runner, err = NewRunner(domain.WithRunnerSize(2), domain.WithRunnerLogger(zap.New(core).Sugar()))
	s.Require().NoError(err)
}

func (s *WorkerTestSuite) TearDownTest() {
	s.runner.Release()
}

// submitted tasks should run off the calling goroutine.
func (s *WorkerTestSuite) TestSubmit() {
	done := make(chan struct{})
	s.NoError(s.runner.Submit(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("task did not run")
	}
}

// Release should wait for running tasks and refuse new ones.
func (s *WorkerTestSuite) TestRelease() {
	var count atomic.Int32
	for range 10 {
		s.NoError(s.runner.Submit(func() {
			time.Sleep(5 * time.Millisecond)
			count.Add(1)
		}))
	}
	s.runner.Release()
	s.Equal(int32(10), count.Load())

	s.ErrorIs(s.runner.Submit(func() {}), ants.ErrPoolClosed)
	// repeated releases are no-ops
	s.runner.Release()
}

// panics should be logged without killing the pool.
func (s *WorkerTestSuite) TestPanic() {
	s.NoError(s.runner.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	s.NoError(s.runner.Submit(func() { close(done) }))
	<-done

	s.Eventually(func() bool {
		return s.logs.FilterMessage("async task panicked").Len() == 1
	}, time.Second, 5*time.Millisecond)
}

// non-positive sizes fall back to the default.
func (s *WorkerTestSuite) TestDefaultSize() {
	r, err := NewRunner(domain.WithRunnerSize(-1))
	s.Require().NoError(err)
	defer r.Release()
	s.Equal(DefaultSize, r.(*Runner).pool.Cap())
}

func TestWorkerTestSuite(t *testing.T) {
	suite.Run(t, new(WorkerTestSuite))
}
