package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/vecshard/pkg/eventstream"
	"github.com/papercomputeco/vecshard/pkg/eventstream/nop"
)

var _ = Describe("Publisher", func() {
	var p *nop.Publisher

	BeforeEach(func() {
		p = nop.NewPublisher()
	})

	It("drops valid events", func() {
		Expect(p.Publish(context.Background(), eventstream.NewMutationEvent("s", "put", []string{"a"}))).To(Succeed())
	})

	It("still rejects invalid events", func() {
		Expect(p.Publish(context.Background(), nil)).To(MatchError(eventstream.ErrNilEvent))
		Expect(p.Publish(context.Background(), &eventstream.MutationEvent{Shard: "s"})).
			To(MatchError(eventstream.ErrIncompleteEvent))
	})

	It("closes", func() {
		Expect(p.Close()).To(Succeed())
	})
})
