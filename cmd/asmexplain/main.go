package main

import (
	"os"

	"github.com/dshills/asmexplain/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
