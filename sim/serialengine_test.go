package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type recordingHandler struct {
	handled []Event
}

func (h *recordingHandler) Handle(e Event) error {
	h.handled = append(h.handled, e)
	return nil
}

var _ = Describe("SerialEngine", func() {
	var (
		engine  *SerialEngine
		handler *recordingHandler
	)

	BeforeEach(func() {
		engine = NewSerialEngine()
		handler = &recordingHandler{}
	})

	It("should run events in time order", func() {
		evt1 := NewEventBase(2, handler)
		evt2 := NewEventBase(1, handler)
		evt3 := NewEventBase(3, handler)

		engine.Schedule(evt1)
		engine.Schedule(evt2)
		engine.Schedule(evt3)

		Expect(engine.Run()).To(Succeed())

		Expect(handler.handled).To(HaveLen(3))
		Expect(handler.handled[0].Time()).To(Equal(VTimeInSec(1)))
		Expect(handler.handled[1].Time()).To(Equal(VTimeInSec(2)))
		Expect(handler.handled[2].Time()).To(Equal(VTimeInSec(3)))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(3)))
	})

	It("should run same-time secondary events after primary events", func() {
		secondary := NewSecondaryEventBase(1, handler)
		primary := NewEventBase(1, handler)

		engine.Schedule(secondary)
		engine.Schedule(primary)

		Expect(engine.Run()).To(Succeed())

		Expect(handler.handled).To(HaveLen(2))
		Expect(handler.handled[0].IsSecondary()).To(BeFalse())
		Expect(handler.handled[1].IsSecondary()).To(BeTrue())
	})

	It("should stop at the RunUntil bound", func() {
		engine.Schedule(NewEventBase(1, handler))
		engine.Schedule(NewEventBase(2, handler))
		engine.Schedule(NewEventBase(5, handler))

		Expect(engine.RunUntil(2)).To(Succeed())

		Expect(handler.handled).To(HaveLen(2))
		Expect(engine.CurrentTime()).To(Equal(VTimeInSec(2)))

		Expect(engine.Run()).To(Succeed())
		Expect(handler.handled).To(HaveLen(3))
	})

	It("should panic when scheduling in the past", func() {
		engine.Schedule(NewEventBase(3, handler))
		Expect(engine.Run()).To(Succeed())

		Expect(func() {
			engine.Schedule(NewEventBase(1, handler))
		}).To(Panic())
	})
})
