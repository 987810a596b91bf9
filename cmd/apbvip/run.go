package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openverif/apbvip/apb"
	"github.com/openverif/apbvip/monitoring"
	"github.com/openverif/apbvip/recording"
	"github.com/openverif/apbvip/testbench"
)

var runFlags = struct {
	transactions int
	seed         int64
	busWidth     int
	addressWidth int
	registers    int

	readyProbability float64
	errorProbability float64

	sqlitePath string
	csvPath    string
	servePort  int
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a randomized regression",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cmd.SilenceUsage = true
		applyEnvDefaults(cmd)
		return runRegression(cmd)
	},
}

func init() {
	runCmd.Flags().IntVarP(&runFlags.transactions, "transactions", "n", 100,
		"number of randomized transfers to drive")
	runCmd.Flags().Int64Var(&runFlags.seed, "seed", 1,
		"seed for both the stimulus and the slave timing draws")
	runCmd.Flags().IntVar(&runFlags.busWidth, "bus-width", 32,
		"data bus width in bits")
	runCmd.Flags().IntVar(&runFlags.addressWidth, "address-width", 12,
		"address width in bits")
	runCmd.Flags().IntVar(&runFlags.registers, "registers", 16,
		"number of words in the slave register file")
	runCmd.Flags().Float64Var(&runFlags.readyProbability,
		"ready-probability", 0,
		"per-access probability of a slave wait state")
	runCmd.Flags().Float64Var(&runFlags.errorProbability,
		"error-probability", 0,
		"per-access probability of an injected slave error")
	runCmd.Flags().StringVar(&runFlags.sqlitePath, "sqlite", "",
		"record observed transfers into this SQLite database")
	runCmd.Flags().StringVar(&runFlags.csvPath, "csv", "",
		"record observed transfers into this CSV file")
	runCmd.Flags().IntVar(&runFlags.servePort, "serve", -1,
		"serve the inspection API on this port after the run, 0 picks a free port")

	rootCmd.AddCommand(runCmd)
}

// applyEnvDefaults overrides flag defaults from APBVIP_* environment
// variables. Explicit flags always win.
func applyEnvDefaults(cmd *cobra.Command) {
	if !cmd.Flags().Changed("seed") {
		if v, err := strconv.ParseInt(
			os.Getenv("APBVIP_SEED"), 10, 64); err == nil {
			runFlags.seed = v
		}
	}

	if !cmd.Flags().Changed("transactions") {
		if v, err := strconv.Atoi(
			os.Getenv("APBVIP_TRANSACTIONS")); err == nil {
			runFlags.transactions = v
		}
	}
}

func runRegression(cmd *cobra.Command) error {
	builder := testbench.MakeBuilder().
		WithBusWidth(runFlags.busWidth).
		WithAddressWidth(runFlags.addressWidth).
		WithRegisterCount(runFlags.registers).
		WithRandomReadyProbability(runFlags.readyProbability).
		WithRandomErrorProbability(runFlags.errorProbability).
		WithSeed(runFlags.seed)

	if runFlags.sqlitePath != "" {
		builder = builder.WithDataRecorder(
			recording.NewDataRecorder(runFlags.sqlitePath))
	}

	tb := builder.Build("Regression")

	if runFlags.csvPath != "" {
		csv := recording.NewCSVWriter(
			runFlags.csvPath, apb.FlatSignalNamer{})
		csv.Init()
		tb.Monitor.RegisterObserver(csv.Observer())
	}

	var server *monitoring.Server
	if runFlags.servePort >= 0 {
		server = monitoring.NewServer().WithPortNumber(runFlags.servePort)
		server.RegisterTimeTeller(tb.Engine)
		server.RegisterComponent(tb.Master)
		server.RegisterComponent(tb.Slave)
		server.RegisterComponent(tb.Monitor)

		_, err := server.StartServer()
		if err != nil {
			return err
		}
	}

	expected := generateStimulus(tb)

	tb.Master.Start()
	observed, err := tb.Drain()
	if err != nil {
		return err
	}

	mismatches := check(cmd, expected, observed)

	errors := 0
	for _, t := range observed {
		if t.Error {
			errors++
		}
	}

	cmd.Printf("%d transfers, %d error responses, %d mismatches\n",
		len(observed), errors, mismatches)

	if server != nil {
		cmd.Println("serving inspection API, interrupt to exit")
		wait := make(chan os.Signal, 1)
		signal.Notify(wait, os.Interrupt)
		<-wait
	}

	if mismatches > 0 {
		return fmt.Errorf("%d mismatches", mismatches)
	}

	return nil
}

// generateStimulus enqueues randomized transfers on the master, held until
// Start, and returns the transfers the monitor is expected to observe. The
// expectation replays the slave semantics over a shadow register file:
// address wrap, the loose bounds check, and reads clamped to the physical
// store.
func generateStimulus(tb *testbench.Testbench) []*apb.Transaction {
	rng := rand.New(rand.NewSource(runFlags.seed))
	shadow := make([]uint64, runFlags.registers)
	expected := make([]*apb.Transaction, 0, runFlags.transactions)

	mask := uint64(1)<<uint(runFlags.addressWidth) - 1
	wordSize := uint64(runFlags.busWidth / 8)

	for i := 0; i < runFlags.transactions; i++ {
		t := apb.NewRead(0,
			apb.WithBusWidth(runFlags.busWidth),
			apb.WithAddressWidth(runFlags.addressWidth))
		t.Randomize(rng)

		wordIndex := (t.Address % mask) / wordSize
		outOfBounds := int64(wordIndex)-1 > int64(runFlags.registers)
		inStore := wordIndex < uint64(runFlags.registers)

		e := &apb.Transaction{
			Address:   t.Address,
			Direction: t.Direction,
			DataValid: true,
			Error:     outOfBounds,
		}

		if t.Direction == apb.DirectionWrite {
			e.Data = t.Data
			if !outOfBounds && inStore {
				shadow[wordIndex] = t.Data
			}
		} else if !outOfBounds && inStore {
			e.Data = shadow[wordIndex]
		}

		expected = append(expected, e)
		tb.Send(t, apb.WithHold())
	}

	return expected
}

// check compares observed transfers against the expectation in order.
// Injected errors randomize the data path, so with error injection enabled
// only address and direction are compared.
func check(
	cmd *cobra.Command,
	expected, observed []*apb.Transaction,
) int {
	mismatches := 0

	if len(expected) != len(observed) {
		cmd.PrintErrf("expected %d transfers, observed %d\n",
			len(expected), len(observed))
		return len(expected)
	}

	for i, e := range expected {
		o := observed[i]

		ok := o.Equals(e) && o.Error == e.Error
		if runFlags.errorProbability > 0 {
			ok = o.Address == e.Address && o.Direction == e.Direction
		}

		if !ok {
			mismatches++
			cmd.PrintErrf("transfer %d: observed %s, expected %s\n",
				i, o, e)
		}
	}

	return mismatches
}
