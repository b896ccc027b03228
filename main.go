package main

import (
	"os"

	"github.com/michaelpento.lv/arbbot/cmd"
	"github.com/michaelpento.lv/arbbot/utils"
)

func main() {
	defer utils.CleanupLogger()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
