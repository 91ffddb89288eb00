// main is the entry point of the callstat CLI.
package main

import (
	"os"

	"github.com/huangsam/callstat/cmd"
	"github.com/huangsam/callstat/internal/contract"
)

func main() {
	if err := cmd.Execute(); err != nil {
		contract.LogWarn("callstat failed", err)
		os.Exit(1)
	}
}
