package testbench

import (
	"database/sql"
	"math/rand"

	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openverif/apbvip/apb"
	"github.com/openverif/apbvip/recording"
)

const period = 1e-9

var _ = Describe("Testbench", func() {
	It("should complete a write and read it back", func() {
		tb := MakeBuilder().Build("TB")

		tb.Send(apb.NewWrite(0x10, 0xDEADBEEF))
		observed, err := tb.Drain()

		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(1))
		Expect(observed[0].Address).To(Equal(uint64(0x10)))
		Expect(observed[0].Direction).To(Equal(apb.DirectionWrite))
		Expect(observed[0].Data).To(Equal(uint64(0xDEADBEEF)))
		Expect(observed[0].Error).To(BeFalse())
		Expect(tb.Slave.Register(4)).To(Equal(uint64(0xDEADBEEF)))

		read := apb.NewRead(0x10)
		tb.Send(read)
		observed, err = tb.Drain()

		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(2))
		Expect(observed[1].Direction).To(Equal(apb.DirectionRead))
		Expect(observed[1].Data).To(Equal(uint64(0xDEADBEEF)))
		Expect(read.Data).To(Equal(uint64(0xDEADBEEF)))
		Expect(read.DataValid).To(BeTrue())
	})

	It("should pipeline held transfers with no idle cycle in between", func() {
		tb := MakeBuilder().Build("TB")

		transactions := make([]*apb.Transaction, 8)
		for i := range transactions {
			transactions[i] = apb.NewWrite(uint64(i*4), uint64(i))
			tb.Send(transactions[i], apb.WithHold())
		}

		Expect(tb.Master.Busy()).To(BeFalse())
		tb.Master.Start()

		observed, err := tb.Drain()
		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(8))

		for i, t := range transactions {
			Expect(t.StartTime).
				To(BeNumerically("~", float64(1+2*i)*period, 1e-15))
			Expect(observed[i].Address).To(Equal(uint64(i * 4)))
			Expect(observed[i].StartTime).
				To(BeNumerically("~", float64(3+2*i)*period, 1e-15))
		}
	})

	It("should stretch each transfer by one cycle with wait states", func() {
		tb := MakeBuilder().
			WithRandomReadyProbability(1).
			Build("TB")

		tb.Send(apb.NewWrite(0x0, 1), apb.WithHold())
		tb.Send(apb.NewWrite(0x4, 2), apb.WithHold())
		tb.Master.Start()

		observed, err := tb.Drain()
		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(2))
		Expect(observed[0].StartTime).
			To(BeNumerically("~", 4*period, 1e-15))
		Expect(observed[1].StartTime).
			To(BeNumerically("~", 7*period, 1e-15))
	})

	It("should tag every transfer and leave the store untouched when "+
		"errors are injected", func() {
		tb := MakeBuilder().
			WithRandomErrorProbability(1).
			Build("TB")

		tb.Send(apb.NewWrite(0x10, 0xDEADBEEF))
		observed, err := tb.Drain()

		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(1))
		Expect(observed[0].Error).To(BeTrue())
		Expect(tb.Slave.Register(4)).To(Equal(uint64(0)))
	})

	It("should match a shadow model over a randomized burst", func() {
		tb := MakeBuilder().
			WithRegisterCount(1024).
			WithSeed(7).
			Build("TB")

		rng := rand.New(rand.NewSource(42))
		shadow := make([]uint64, 1024)
		expected := make([]*apb.Transaction, 0, 50)

		for i := 0; i < 50; i++ {
			t := apb.NewRead(0)
			t.Randomize(rng)

			wordIndex := t.Address / 4
			e := &apb.Transaction{
				Address:   t.Address,
				Direction: t.Direction,
				DataValid: true,
			}
			if t.Direction == apb.DirectionWrite {
				shadow[wordIndex] = t.Data
				e.Data = t.Data
			} else {
				e.Data = shadow[wordIndex]
			}
			expected = append(expected, e)

			tb.Send(t, apb.WithHold())
		}

		tb.Master.Start()
		observed, err := tb.Drain()

		Expect(err).To(BeNil())
		Expect(observed).To(HaveLen(50))
		for i, e := range expected {
			Expect(observed[i].Equals(e)).To(BeTrue(),
				"transfer %d: observed %s, expected %s",
				i, observed[i], e)
		}
	})

	It("should record observed transfers through the data recorder", func() {
		db, err := sql.Open("sqlite3", ":memory:")
		Expect(err).To(BeNil())
		defer db.Close()

		recorder := recording.NewDataRecorderWithDB(db)
		tb := MakeBuilder().
			WithDataRecorder(recorder).
			Build("TB")

		tb.Send(apb.NewWrite(0x10, 0xDEADBEEF))
		tb.Send(apb.NewRead(0x10))
		_, err = tb.Drain()
		Expect(err).To(BeNil())

		recorder.Flush()

		rows, err := db.Query(
			"SELECT address, direction, data, error FROM transfers " +
				"ORDER BY starttime")
		Expect(err).To(BeNil())
		defer rows.Close()

		count := 0
		for rows.Next() {
			var address, data uint64
			var direction string
			var errFlag bool

			Expect(rows.Scan(&address, &direction, &data, &errFlag)).
				To(Succeed())
			Expect(address).To(Equal(uint64(0x10)))
			Expect(data).To(Equal(uint64(0xDEADBEEF)))
			Expect(errFlag).To(BeFalse())
			count++
		}
		Expect(count).To(Equal(2))
	})

	It("should advance by a bounded number of cycles with RunFor", func() {
		tb := MakeBuilder().Build("TB")

		tb.Send(apb.NewWrite(0x0, 1))
		Expect(tb.RunFor(2)).To(Succeed())
		Expect(tb.Completed()).To(BeEmpty())
		Expect(tb.Master.Busy()).To(BeTrue())

		Expect(tb.RunFor(2)).To(Succeed())
		Expect(tb.Completed()).To(HaveLen(1))
		Expect(tb.Master.Busy()).To(BeFalse())
	})
})
