package apb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/openverif/apbvip/sim"
)

var _ = Describe("MasterDriver", func() {
	var (
		f *fixture
	)

	BeforeEach(func() {
		f = newFixture(make([]uint64, 16), 0, 0)
	})

	It("should append to the injected transmit queue", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		defer mockCtrl.Finish()

		queue := NewMockBuffer(mockCtrl)

		engine := sim.NewSerialEngine()
		bus := NewBus()
		clock := NewClockDomain("Clock", engine, 1*sim.GHz, bus)
		master := MakeMasterDriverBuilder().
			WithClockDomain(clock).
			WithTransmitQueue(queue).
			Build("Master")

		txn := NewWrite(0x10, 1)
		queue.EXPECT().Push(txn)

		master.Send(txn, WithHold())
	})

	It("should complete a write and become quiescent", func() {
		txn := NewWrite(0x10, 0xCAFE)
		f.master.Send(txn)

		Expect(f.master.Busy()).To(BeTrue())
		Expect(f.engine.Run()).To(Succeed())

		Expect(f.master.Busy()).To(BeFalse())
		Expect(txn.Started()).To(BeTrue())
		Expect(txn.StartTime).To(BeNumerically("~", 1*period, 1e-15))

		Expect(f.bus.Select).To(BeFalse())
		Expect(f.bus.Enable).To(BeFalse())
		Expect(f.bus.WriteData).To(BeZero())
		Expect(f.bus.Strobe).To(BeZero())
	})

	It("should fill in read data on completion", func() {
		f.master.Send(NewWrite(0x8, 0x1234))
		txn := NewRead(0x8)
		f.master.Send(txn)

		Expect(f.engine.Run()).To(Succeed())

		Expect(txn.DataValid).To(BeTrue())
		Expect(txn.Data).To(Equal(uint64(0x1234)))
	})

	It("should hold enqueued transactions until started", func() {
		f.master.Send(NewWrite(0x0, 1), WithHold())
		f.master.Send(NewWrite(0x4, 2), WithHold())

		Expect(f.master.Busy()).To(BeFalse())
		Expect(f.engine.Run()).To(Succeed())
		Expect(f.observed).To(BeEmpty())
		Expect(f.master.QueueSize()).To(Equal(2))

		f.master.Start()
		Expect(f.master.Busy()).To(BeTrue())
		Expect(f.engine.Run()).To(Succeed())

		Expect(f.observed).To(HaveLen(2))
		Expect(f.slave.Register(0)).To(Equal(uint64(1)))
		Expect(f.slave.Register(1)).To(Equal(uint64(2)))
	})

	It("should not start a second pipeline on enqueue while running", func() {
		f.master.Send(NewWrite(0x0, 1))
		f.master.Send(NewWrite(0x4, 2))
		f.master.Send(NewWrite(0x8, 3))

		Expect(f.engine.Run()).To(Succeed())

		Expect(f.observed).To(HaveLen(3))
		Expect(f.master.Busy()).To(BeFalse())
	})

	It("should stall in SAMPLE while the slave is not ready", func() {
		// A bare bus with no responder never asserts ready.
		engine := sim.NewSerialEngine()
		bus := NewBus()
		clock := NewClockDomain("Clock", engine, 1*sim.GHz, bus)
		master := MakeMasterDriverBuilder().
			WithClockDomain(clock).
			Build("Master")
		monitor := MakeBusMonitorBuilder().
			WithClockDomain(clock).
			Build("Monitor")

		master.Send(NewWrite(0x10, 1))

		Expect(engine.RunUntil(100 * period)).To(Succeed())

		Expect(master.Busy()).To(BeTrue())
		Expect(monitor.Observed()).To(BeZero())
		Expect(bus.Enable).To(BeTrue(), "enable stays asserted while stalled")
		Expect(bus.Address).To(Equal(uint64(0x10)), "address stays held")
	})

	It("should report its status", func() {
		status := f.master.Status().(MasterStatus)
		Expect(status.State).To(Equal("IDLE"))
		Expect(status.Busy).To(BeFalse())
		Expect(status.Queued).To(BeZero())
	})
})
