package main

import (
	"fmt"
	"os"

	"github.com/forgeci/buildqueue/internal/queuecli"
)

func main() {
	if err := queuecli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
