package recording

import (
	"fmt"
	"os"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/openverif/apbvip/apb"
)

// CSVWriter stores completed transfers into a CSV file. The header names
// the address, direction, strobe, and error columns after the physical
// signal names the surrounding design uses, resolved through a SignalNamer.
type CSVWriter struct {
	path  string
	namer apb.SignalNamer
	file  *os.File

	records    []TransferRecord
	bufferSize int
}

// NewCSVWriter creates a CSVWriter. An empty path picks a unique name.
func NewCSVWriter(path string, namer apb.SignalNamer) *CSVWriter {
	return &CSVWriter{
		path:       path,
		namer:      namer,
		bufferSize: 1000,
	}
}

// Init creates the CSV file and writes the header.
func (w *CSVWriter) Init() {
	if w.path == "" {
		w.path = "apbvip_transfers_" + xid.New().String()
	}

	filename := w.path + ".csv"
	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}
	w.file = file

	fmt.Fprintf(file, "start_time, %s, %s, data, %s, %s\n",
		w.namer.SignalName(apb.RoleAddress),
		w.namer.SignalName(apb.RoleDirection),
		w.namer.SignalName(apb.RoleStrobe),
		w.namer.SignalName(apb.RoleSlaveError),
	)

	atexit.Register(func() {
		w.Flush()
		err := w.file.Close()
		if err != nil {
			panic(err)
		}
	})
}

// Observer returns an observer that records every transfer the monitor
// reports.
func (w *CSVWriter) Observer() apb.TransactionObserver {
	return func(t *apb.Transaction) {
		w.Write(makeTransferRecord(t))
	}
}

// Write buffers one transfer record.
func (w *CSVWriter) Write(r TransferRecord) {
	w.records = append(w.records, r)
	if len(w.records) >= w.bufferSize {
		w.Flush()
	}
}

// Flush writes the buffered records to the CSV file.
func (w *CSVWriter) Flush() {
	for _, r := range w.records {
		errFlag := 0
		if r.Error {
			errFlag = 1
		}

		fmt.Fprintf(w.file, "%.10f, 0x%X, %s, 0x%X, 0x%X, %d\n",
			r.StartTime, r.Address, r.Direction, r.Data, r.Strobe, errFlag)
	}

	w.records = nil
}
