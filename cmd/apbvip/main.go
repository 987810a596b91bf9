// The apbvip command runs randomized regressions against the bus
// verification environment from the command line.
package main

func main() {
	Execute()
}
