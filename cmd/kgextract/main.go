// Command kgextract extracts knowledge graphs from text with an LLM. It
// runs one-off extractions, the HTTP API, or a NATS worker.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
