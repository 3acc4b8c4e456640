package session_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/creatorlens/tracker-go/pkg/db/models"
	"github.com/creatorlens/tracker-go/pkg/session"
	"github.com/creatorlens/tracker-go/pkg/store/storetest"
)

var _ = Describe("Tracker", func() {
	var (
		ctx     context.Context
		fake    *storetest.FakeStore
		tracker *session.Tracker
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = storetest.New()
		logger := logrus.New()
		logger.SetLevel(logrus.PanicLevel)
		tracker = session.NewTracker(fake, logger)
	})

	Describe("Begin", func() {
		It("creates a running session", func() {
			Expect(tracker.Begin(ctx, "sess-1", "Alice")).To(Succeed())

			stored, err := tracker.Get(ctx, "sess-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionRunning))
			Expect(stored.Username).To(Equal("alice"))
			Expect(stored.StartedAt).NotTo(BeZero())
		})

		It("rejects a duplicate session id", func() {
			Expect(tracker.Begin(ctx, "sess-1", "alice")).To(Succeed())

			err := tracker.Begin(ctx, "sess-1", "alice")
			var dup *session.DuplicateSessionError
			Expect(err).To(BeAssignableToTypeOf(dup))
		})
	})

	Describe("Complete", func() {
		BeforeEach(func() {
			Expect(tracker.Begin(ctx, "sess-1", "alice")).To(Succeed())
		})

		It("transitions running to completed with the post count", func() {
			Expect(tracker.Complete(ctx, "sess-1", 7)).To(Succeed())

			stored, err := tracker.Get(ctx, "sess-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionCompleted))
			Expect(stored.PostsScrapedCount).To(Equal(7))
			Expect(stored.CompletedAt).NotTo(BeNil())
		})

		It("rejects a second terminal transition and keeps the stored state", func() {
			Expect(tracker.Complete(ctx, "sess-1", 7)).To(Succeed())

			err := tracker.Complete(ctx, "sess-1", 99)
			var invalid *session.InvalidStateError
			Expect(err).To(BeAssignableToTypeOf(invalid))

			stored, err := tracker.Get(ctx, "sess-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionCompleted))
			Expect(stored.PostsScrapedCount).To(Equal(7))
		})

		It("rejects completing an unknown session", func() {
			err := tracker.Complete(ctx, "missing", 1)
			var invalid *session.InvalidStateError
			Expect(err).To(BeAssignableToTypeOf(invalid))
		})
	})

	Describe("Fail", func() {
		BeforeEach(func() {
			Expect(tracker.Begin(ctx, "sess-1", "alice")).To(Succeed())
		})

		It("transitions running to failed with the error payload", func() {
			Expect(tracker.Fail(ctx, "sess-1", "connection error: timeout")).To(Succeed())

			stored, err := tracker.Get(ctx, "sess-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionFailed))
			Expect(stored.Errors).To(ConsistOf("connection error: timeout"))
		})

		It("rejects failing an already completed session", func() {
			Expect(tracker.Complete(ctx, "sess-1", 3)).To(Succeed())

			err := tracker.Fail(ctx, "sess-1", "late failure")
			var invalid *session.InvalidStateError
			Expect(err).To(BeAssignableToTypeOf(invalid))

			stored, getErr := tracker.Get(ctx, "sess-1")
			Expect(getErr).NotTo(HaveOccurred())
			Expect(stored.Status).To(Equal(models.SessionCompleted))
		})
	})
})
