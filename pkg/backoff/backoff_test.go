package backoff_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/creatorlens/tracker-go/pkg/backoff"
)

var _ = Describe("Policy", func() {
	var policy *backoff.Policy

	BeforeEach(func() {
		policy = backoff.NewPolicy(100*time.Millisecond, 50*time.Millisecond)
	})

	It("doubles the floor with each attempt", func() {
		for attempt := 1; attempt <= 6; attempt++ {
			floor := 100 * time.Millisecond * time.Duration(1<<(attempt-1))
			ceiling := floor + 50*time.Millisecond

			for i := 0; i < 50; i++ {
				delay := policy.Delay(attempt)
				Expect(delay).To(BeNumerically(">=", floor),
					"attempt %d produced a delay below the exponential floor", attempt)
				Expect(delay).To(BeNumerically("<", ceiling),
					"attempt %d produced a delay at or above floor+jitter", attempt)
			}
		}
	})

	It("treats attempt counts below one as the first attempt", func() {
		delay := policy.Delay(0)
		Expect(delay).To(BeNumerically(">=", 100*time.Millisecond))
		Expect(delay).To(BeNumerically("<", 150*time.Millisecond))
	})

	It("substitutes defaults for non-positive configuration", func() {
		p := backoff.NewPolicy(0, 0)
		Expect(p.BaseDelay).To(Equal(backoff.DefaultBaseDelay))
		Expect(p.JitterMax).To(Equal(backoff.DefaultJitterMax))
	})

	It("varies delays across calls for the same attempt", func() {
		seen := map[time.Duration]bool{}
		for i := 0; i < 100; i++ {
			seen[policy.Delay(3)] = true
		}
		Expect(len(seen)).To(BeNumerically(">", 1))
	})
})
