package main

import (
	"os"

	"github.com/stevemurr/school-directory/cli"
)

func main() {
	os.Exit(cli.Execute())
}
