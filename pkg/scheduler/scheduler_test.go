package scheduler_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/backoff"
	"github.com/creatorlens/tracker-go/pkg/fetch"
	"github.com/creatorlens/tracker-go/pkg/progress"
	"github.com/creatorlens/tracker-go/pkg/scheduler"
)

// fakeFetcher records Release calls; profile/post fetching is not used by
// these tests, which submit explicit units of work.
type fakeFetcher struct {
	mu       sync.Mutex
	released int
}

func (f *fakeFetcher) FetchProfile(ctx context.Context, username string) (*fetch.ProfileRecord, error) {
	return &fetch.ProfileRecord{Username: username}, nil
}

func (f *fakeFetcher) FetchPosts(ctx context.Context, username string, limit int) ([]fetch.RawPost, error) {
	return nil, nil
}

func (f *fakeFetcher) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}

func (f *fakeFetcher) releaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func newScheduler(fetcher fetch.Fetcher, emitter *progress.Emitter, concurrency int) *scheduler.Scheduler {
	s, err := scheduler.New(scheduler.Config{
		Fetcher:        fetcher,
		Emitter:        emitter,
		Logger:         quietLogger(),
		Concurrency:    concurrency,
		MaxRetries:     3,
		PacingInterval: time.Millisecond,
		Backoff:        backoff.NewPolicy(time.Millisecond, time.Millisecond),
	})
	Expect(err).NotTo(HaveOccurred())
	return s
}

// collectEvents drains an emitter subscription into a shared slice.
func collectEvents(emitter *progress.Emitter) func() []progress.Event {
	_, ch := emitter.Subscribe()
	var mu sync.Mutex
	var events []progress.Event
	go func() {
		for event := range ch {
			mu.Lock()
			events = append(events, event)
			mu.Unlock()
		}
	}()
	return func() []progress.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]progress.Event(nil), events...)
	}
}

func countByStatus(events []progress.Event, status progress.Status) int {
	n := 0
	for _, event := range events {
		if event.Status == status {
			n++
		}
	}
	return n
}

var _ = Describe("Scheduler", func() {
	var (
		fetcher *fakeFetcher
		emitter *progress.Emitter
	)

	BeforeEach(func() {
		fetcher = &fakeFetcher{}
		emitter = progress.NewEmitter(quietLogger())
	})

	Describe("priority ordering", func() {
		It("runs higher priorities first, FIFO among equals", func() {
			s := newScheduler(fetcher, emitter, 1)

			gate := make(chan struct{})
			var mu sync.Mutex
			var order []string

			record := func(name string) scheduler.UnitOfWork {
				return func(ctx context.Context) error {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					return nil
				}
			}

			// Occupy the single slot so the remaining submissions queue up.
			err := s.Submit("gate", scheduler.WithUnitOfWork(func(ctx context.Context) error {
				<-gate
				return nil
			}))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Submit("low-a", scheduler.WithPriority(1), scheduler.WithUnitOfWork(record("low-a")))).To(Succeed())
			Expect(s.Submit("high", scheduler.WithPriority(5), scheduler.WithUnitOfWork(record("high")))).To(Succeed())
			Expect(s.Submit("low-b", scheduler.WithPriority(1), scheduler.WithUnitOfWork(record("low-b")))).To(Succeed())

			close(gate)
			Expect(s.Close()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(order).To(Equal([]string{"high", "low-a", "low-b"}))
		})
	})

	Describe("retries", func() {
		It("attempts a transiently failing task exactly MaxRetries times, then emits one terminal error", func() {
			s := newScheduler(fetcher, emitter, 1)
			events := collectEvents(emitter)

			var mu sync.Mutex
			attempts := 0
			terminalErrs := 0

			err := s.Submit("alice",
				scheduler.WithUnitOfWork(func(ctx context.Context) error {
					mu.Lock()
					attempts++
					mu.Unlock()
					return &fetch.ConnectionError{Err: context.DeadlineExceeded}
				}),
				scheduler.WithCallbacks(nil, func(err error) {
					mu.Lock()
					terminalErrs++
					mu.Unlock()
				}),
			)
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				return s.Status().Failed
			}, time.Second, time.Millisecond).Should(Equal(1))
			Expect(s.Close()).To(Succeed())

			mu.Lock()
			Expect(attempts).To(Equal(3))
			Expect(terminalErrs).To(Equal(1))
			mu.Unlock()

			Eventually(func() int {
				return countByStatus(events(), progress.StatusError)
			}, time.Second, time.Millisecond).Should(Equal(1))
			Consistently(func() int {
				return countByStatus(events(), progress.StatusError)
			}, 50*time.Millisecond, 10*time.Millisecond).Should(Equal(1))
		})

		It("does not retry permanent failures", func() {
			s := newScheduler(fetcher, emitter, 1)

			var mu sync.Mutex
			attempts := 0

			err := s.Submit("alice", scheduler.WithUnitOfWork(func(ctx context.Context) error {
				mu.Lock()
				attempts++
				mu.Unlock()
				return &fetch.APIError{StatusCode: 404, Message: "profile not found"}
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Close()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(attempts).To(Equal(1))
		})

		It("retries server-side API errors", func() {
			s := newScheduler(fetcher, emitter, 1)

			var mu sync.Mutex
			attempts := 0

			err := s.Submit("alice", scheduler.WithUnitOfWork(func(ctx context.Context) error {
				mu.Lock()
				attempts++
				n := attempts
				mu.Unlock()
				if n < 2 {
					return &fetch.APIError{StatusCode: 503, Message: "upstream overloaded"}
				}
				return nil
			}))
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() int {
				return s.Status().Completed
			}, time.Second, time.Millisecond).Should(Equal(1))
			Expect(s.Close()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(attempts).To(Equal(2))
		})
	})

	Describe("concurrency", func() {
		It("never runs more tasks than the configured limit", func() {
			s := newScheduler(fetcher, emitter, 2)

			var mu sync.Mutex
			current, peak := 0, 0

			for i := 0; i < 8; i++ {
				err := s.Submit("subject", scheduler.WithUnitOfWork(func(ctx context.Context) error {
					mu.Lock()
					current++
					if current > peak {
						peak = current
					}
					mu.Unlock()

					time.Sleep(5 * time.Millisecond)

					mu.Lock()
					current--
					mu.Unlock()
					return nil
				}))
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(s.Close()).To(Succeed())

			mu.Lock()
			defer mu.Unlock()
			Expect(peak).To(BeNumerically("<=", 2))
		})
	})

	Describe("SubmitBulk", func() {
		It("accepts every non-empty username", func() {
			s := newScheduler(fetcher, emitter, 2)
			accepted := s.SubmitBulk([]string{"alice", "", "bob"})
			Expect(accepted).To(Equal(2))
			Expect(s.Close()).To(Succeed())
		})
	})

	Describe("Close", func() {
		It("waits for in-flight work and releases the fetcher once", func() {
			s := newScheduler(fetcher, emitter, 1)

			var mu sync.Mutex
			finished := false

			err := s.Submit("alice", scheduler.WithUnitOfWork(func(ctx context.Context) error {
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				finished = true
				mu.Unlock()
				return nil
			}))
			Expect(err).NotTo(HaveOccurred())

			Expect(s.Close()).To(Succeed())

			mu.Lock()
			Expect(finished).To(BeTrue())
			mu.Unlock()
			Expect(fetcher.releaseCount()).To(Equal(1))

			Expect(s.Close()).To(Succeed())
			Expect(fetcher.releaseCount()).To(Equal(1))
		})

		It("refuses submissions after close", func() {
			s := newScheduler(fetcher, emitter, 1)
			Expect(s.Close()).To(Succeed())
			Expect(s.Submit("alice")).To(MatchError(scheduler.ErrSchedulerClosed))
		})
	})
})
