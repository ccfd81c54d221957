package main

import (
	"os"

	"github.com/Sara-Samara/HealthAidProj-sub002/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
