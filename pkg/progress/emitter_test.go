package progress_test

import (
	"github.com/sirupsen/logrus"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creatorlens/tracker-go/pkg/progress"
)

var _ = Describe("Emitter", func() {
	var emitter *progress.Emitter

	BeforeEach(func() {
		logger := logrus.New()
		logger.SetLevel(logrus.PanicLevel)
		emitter = progress.NewEmitter(logger)
	})

	It("delivers events to every subscriber", func() {
		_, first := emitter.Subscribe()
		_, second := emitter.Subscribe()

		emitter.Publish(progress.Event{Username: "alice", Status: progress.StatusRunning})

		Eventually(first).Should(Receive(HaveField("Username", "alice")))
		Eventually(second).Should(Receive(HaveField("Status", progress.StatusRunning)))
	})

	It("stops delivering after unsubscribe and closes the channel", func() {
		id, ch := emitter.Subscribe()
		emitter.Unsubscribe(id)

		Eventually(ch).Should(BeClosed())
	})

	It("does not block when a subscriber stops draining", func() {
		_, _ = emitter.Subscribe()

		done := make(chan struct{})
		go func() {
			defer close(done)
			// Overflow the subscriber buffer; Publish must never block.
			for i := 0; i < 200; i++ {
				emitter.Publish(progress.Event{Username: "alice", Status: progress.StatusVideo})
			}
		}()

		Eventually(done).Should(BeClosed())
	})

	It("tolerates publishing with no subscribers", func() {
		Expect(func() {
			emitter.Publish(progress.Event{Username: "alice", Status: progress.StatusSuccess})
		}).NotTo(Panic())
	})
})
