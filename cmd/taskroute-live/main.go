package main

import (
	"os"

	"github.com/theoremus-urban-solutions/taskroute-live/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
