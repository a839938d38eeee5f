package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/metroflow/internal/adapters/mq/queue"
	worker "github.com/okian/metroflow/internal/adapters/mq/worker"
	"github.com/okian/metroflow/internal/domain/model"
	logging "github.com/okian/metroflow/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockProcessor struct {
	mu     sync.Mutex
	errs   map[string]error
	seen   []string
	block  chan struct{}
	called chan string
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{errs: make(map[string]error), called: make(chan string, 100)}
}

func (p *mockProcessor) Process(ctx context.Context, job worker.Job) (worker.Result, error) {
	p.mu.Lock()
	p.seen = append(p.seen, job.Station.Name)
	err := p.errs[job.Station.Name]
	block := p.block
	p.mu.Unlock()
	p.called <- job.Station.Name

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return worker.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return worker.Result{}, err
	}
	return worker.Result{
		Score: model.StationScore{Station: job.Station.Name, Dominant: 6},
		POIs:  model.StationPOIs{Station: job.Station.Name},
	}, nil
}

type mockSink struct {
	mu          sync.Mutex
	committed   []string
	failed      []string
	skipped     []string
	interrupted []string
	commitErr   error
}

func (s *mockSink) Commit(_ context.Context, job worker.Job, res worker.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.committed = append(s.committed, res.Score.Station)
	return nil
}

func (s *mockSink) Skipped(_ context.Context, job worker.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipped = append(s.skipped, job.Station.Name)
}

func (s *mockSink) Failed(_ context.Context, job worker.Job, _ error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, job.Station.Name)
}

func (s *mockSink) Interrupted(_ context.Context, job worker.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = append(s.interrupted, job.Station.Name)
}

func (s *mockSink) snapshot() (committed, failed, skipped, interrupted []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.committed...), append([]string(nil), s.failed...),
		append([]string(nil), s.skipped...), append([]string(nil), s.interrupted...)
}

func filledQueue(names ...string) *queue.InMemoryQueue {
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(names) + 1))
	for i, n := range names {
		q.Enqueue(context.Background(), queue.Job{Index: i, Station: model.Station{Name: n}})
	}
	return q
}

func TestInMemoryWorker(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a worker over a closed queue of stations", t, func() {
		ctx := context.Background()
		proc := newMockProcessor()
		sink := &mockSink{}

		convey.Convey("When every station succeeds", func() {
			q := filledQueue("A", "B", "C")
			_ = q.Close()
			w := worker.NewInMemoryWorker(q, proc, sink, worker.WithName("worker-test"))
			w.Run(ctx)

			convey.Convey("Then results are committed in queue order", func() {
				committed, failed, _, _ := sink.snapshot()
				convey.So(committed, convey.ShouldResemble, []string{"A", "B", "C"})
				convey.So(failed, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When one station fails to process", func() {
			proc.errs["B"] = errors.New("upstream down")
			q := filledQueue("A", "B", "C")
			_ = q.Close()
			worker.NewInMemoryWorker(q, proc, sink).Run(ctx)

			convey.Convey("Then the others still commit", func() {
				committed, failed, _, _ := sink.snapshot()
				convey.So(committed, convey.ShouldResemble, []string{"A", "C"})
				convey.So(failed, convey.ShouldResemble, []string{"B"})
			})
		})

		convey.Convey("When the processor skips a station", func() {
			proc.errs["A"] = fmt.Errorf("already done: %w", worker.ErrSkip)
			q := filledQueue("A", "B")
			_ = q.Close()
			worker.NewInMemoryWorker(q, proc, sink).Run(ctx)

			convey.Convey("Then it is reported as skipped, not failed", func() {
				committed, failed, skipped, _ := sink.snapshot()
				convey.So(committed, convey.ShouldResemble, []string{"B"})
				convey.So(skipped, convey.ShouldResemble, []string{"A"})
				convey.So(failed, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When the commit fails", func() {
			sink.commitErr = errors.New("disk full")
			q := filledQueue("A")
			_ = q.Close()
			worker.NewInMemoryWorker(q, proc, sink).Run(ctx)

			convey.Convey("Then the station is reported as failed", func() {
				_, failed, _, _ := sink.snapshot()
				convey.So(failed, convey.ShouldResemble, []string{"A"})
			})
		})

		convey.Convey("When the context is cancelled mid-station", func() {
			proc.block = make(chan struct{})
			q := filledQueue("A", "B")
			cctx, cancel := context.WithCancel(ctx)
			w := worker.NewInMemoryWorker(q, proc, sink)
			go w.Run(cctx)

			<-proc.called
			cancel()

			select {
			case <-w.Done():
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not stop")
			}

			convey.Convey("Then the partial station is discarded and nothing else runs", func() {
				committed, _, _, interrupted := sink.snapshot()
				convey.So(committed, convey.ShouldBeEmpty)
				convey.So(interrupted, convey.ShouldResemble, []string{"A"})
				convey.So(len(proc.called), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When shutting down an idle worker", func() {
			q := queue.NewInMemoryQueue()
			w := worker.NewInMemoryWorker(q, proc, sink)
			go w.Run(ctx)

			sctx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()

			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	_ = logging.Init()

	convey.Convey("Given a pool of four workers", t, func() {
		ctx := context.Background()
		proc := newMockProcessor()
		sink := &mockSink{}

		names := make([]string, 40)
		for i := range names {
			names[i] = fmt.Sprintf("station-%02d", i)
		}
		q := filledQueue(names...)
		_ = q.Close()

		pool := worker.NewPool(4, q, proc, sink)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		pool.Start(ctx)
		pool.Wait()

		convey.Convey("Then every station is committed exactly once", func() {
			committed, _, _, _ := sink.snapshot()
			convey.So(len(committed), convey.ShouldEqual, 40)
			uniq := make(map[string]bool)
			for _, c := range committed {
				uniq[c] = true
			}
			convey.So(len(uniq), convey.ShouldEqual, 40)
		})
	})

	convey.Convey("Given a pool with a non-positive size", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), newMockProcessor(), &mockSink{})
		convey.So(pool.Size(), convey.ShouldEqual, 1)

		pool.Start(context.Background())
		sctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		convey.So(pool.Shutdown(sctx), convey.ShouldBeNil)
	})
}
