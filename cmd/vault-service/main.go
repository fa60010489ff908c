package main

import (
	"os"

	"github.com/dropspot/dropspot/vaultservice"
)

func main() {
	if err := vaultservice.Run(); err != nil {
		os.Exit(1)
	}
}
