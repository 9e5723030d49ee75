// Command memctl runs the extraction engine and profile projector offline,
// against JSON files, and publishes signals to the ingestion queue.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
