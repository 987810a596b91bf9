package apb

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SlaveResponder", func() {
	var (
		f *fixture
	)

	Context("with zero probabilities", func() {
		BeforeEach(func() {
			f = newFixture(make([]uint64, 16), 0, 0)
		})

		It("should commit a write into the register store", func() {
			f.master.Send(NewWrite(0x10, 0xDEADBEEF))

			Expect(f.engine.Run()).To(Succeed())

			Expect(f.slave.Register(4)).To(Equal(uint64(0xDEADBEEF)))
		})

		It("should serve a read from the register store", func() {
			f.master.Send(NewWrite(0x10, 0xDEADBEEF))
			read := NewRead(0x10)
			f.master.Send(read)

			Expect(f.engine.Run()).To(Succeed())

			Expect(read.Data).To(Equal(uint64(0xDEADBEEF)))
			Expect(read.Error).To(BeFalse())
		})

		It("should wrap addresses modulo one less than the address space", func() {
			// With a 12-bit address width the wrap modulus is 4095, so
			// address 4103 lands on word index (4103%4095)/4 = 2.
			f.master.Send(NewWrite(4103, 0x77))

			Expect(f.engine.Run()).To(Succeed())

			Expect(f.slave.Register(2)).To(Equal(uint64(0x77)))
		})

		It("should apply the loose upper bounds check", func() {
			// The check is wordIndex-1 > registerCount. With 16 registers
			// word index 17 still passes and word index 18 is the first
			// to be rejected.
			pass := NewRead(17 * 4)
			firstReject := NewRead(18 * 4)
			scenario := NewRead(20 * 4)
			f.master.Send(pass)
			f.master.Send(firstReject)
			f.master.Send(scenario)

			Expect(f.engine.Run()).To(Succeed())

			Expect(pass.Error).To(BeFalse())
			Expect(firstReject.Error).To(BeTrue())
			Expect(scenario.Error).To(BeTrue())
		})

		It("should not fault on an accepted index just past the store", func() {
			// Word index 17 passes the loose check but lies outside the
			// physical store; the access must complete without committing.
			write := NewWrite(17*4, 0xAB)
			f.master.Send(write)

			Expect(f.engine.Run()).To(Succeed())

			Expect(write.Error).To(BeFalse())
			for i := uint64(0); i < 16; i++ {
				Expect(f.slave.Register(i)).To(BeZero())
			}
		})

		It("should restore the initial snapshot on reset", func() {
			f.master.Send(NewWrite(0x0, 0x111))
			Expect(f.engine.Run()).To(Succeed())
			Expect(f.slave.Register(0)).To(Equal(uint64(0x111)))

			f.slave.Reset()
			Expect(f.slave.Register(0)).To(BeZero())

			// A second run and reset must not leak the prior writes.
			f.master.Send(NewWrite(0x0, 0x222))
			Expect(f.engine.Run()).To(Succeed())
			f.slave.Reset()
			Expect(f.slave.Register(0)).To(BeZero())
		})
	})

	Context("with wait states always on", func() {
		BeforeEach(func() {
			f = newFixture(make([]uint64, 16), 1, 0)
		})

		It("should insert exactly one wait cycle per transfer", func() {
			f.master.Send(NewWrite(0x0, 1))
			f.master.Send(NewWrite(0x4, 2))

			Expect(f.engine.Run()).To(Succeed())

			Expect(f.observed).To(HaveLen(2))
			// Without wait states consecutive transfers complete two
			// cycles apart; the forced draw adds one cycle each.
			gap := f.observed[1].StartTime - f.observed[0].StartTime
			Expect(gap).To(BeNumerically("~", 3*period, 1e-15))

			Expect(f.slave.Register(0)).To(Equal(uint64(1)))
			Expect(f.slave.Register(1)).To(Equal(uint64(2)))
		})
	})

	Context("with error injection always on", func() {
		BeforeEach(func() {
			f = newFixture(make([]uint64, 16), 0, 1)
		})

		It("should tag every transfer and leave the store unmodified", func() {
			f.master.Send(NewWrite(0x10, 0xDEADBEEF))
			read := NewRead(0x10)
			f.master.Send(read)

			Expect(f.engine.Run()).To(Succeed())

			Expect(f.observed).To(HaveLen(2))
			for _, t := range f.observed {
				Expect(t.Error).To(BeTrue())
			}

			Expect(read.Data).To(BeZero(), "errored reads return zero data")
			Expect(f.slave.Register(4)).To(BeZero())
		})
	})

	Context("without the slave-error line", func() {
		BeforeEach(func() {
			f = newFixture(make([]uint64, 16), 0, 1, WithoutSlaveErr())
		})

		It("should complete without reporting errors", func() {
			write := NewWrite(0x10, 0xDEADBEEF)
			f.master.Send(write)

			Expect(f.engine.Run()).To(Succeed())

			Expect(write.Error).To(BeFalse())
			Expect(f.observed).To(HaveLen(1))
			Expect(f.observed[0].Error).To(BeFalse())
			Expect(f.slave.Register(4)).To(BeZero(),
				"the injected error still suppresses the commit")
		})
	})
})
