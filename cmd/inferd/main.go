// Command inferd runs a local LLM inference runtime: it supervises a
// llama.cpp server (or talks to a remote backend) and serves streamed chat
// turns over HTTP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "inferd:", err)
		os.Exit(1)
	}
}
