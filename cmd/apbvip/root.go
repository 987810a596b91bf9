package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "apbvip",
	Short: "apbvip exercises a bus slave with randomized transfers and checks the responses.",
	Long: `apbvip wires a master driver, a slave responder, and a bus monitor into a ` +
		`single clock domain, drives randomized transfers through it, and compares ` +
		`what the monitor observes against a shadow model of the register file.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	// A .env file in the working directory can pre-set flag defaults
	// through the environment. Missing files are fine.
	_ = godotenv.Load()

	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
