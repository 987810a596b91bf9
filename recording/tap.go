package recording

import (
	"github.com/openverif/apbvip/apb"
)

// A TransferRecord is the flattened form of one completed transfer, suitable
// for both the SQLite and the CSV backends.
type TransferRecord struct {
	ID        string
	StartTime float64
	Address   uint64
	Direction string
	Data      uint64
	Strobe    uint64
	Error     bool
}

func makeTransferRecord(t *apb.Transaction) TransferRecord {
	return TransferRecord{
		ID:        t.ID,
		StartTime: float64(t.StartTime),
		Address:   t.Address,
		Direction: t.Direction.String(),
		Data:      t.Data,
		Strobe:    t.StrobeBits(),
		Error:     t.Error,
	}
}

// NewTransferTap creates the named table and returns an observer that
// records every completed transfer the monitor reports.
func NewTransferTap(
	recorder DataRecorder,
	tableName string,
) apb.TransactionObserver {
	recorder.CreateTable(tableName, TransferRecord{})

	return func(t *apb.Transaction) {
		recorder.InsertData(tableName, makeTransferRecord(t))
	}
}
