package main

import (
	"os"

	vecshardcmder "github.com/papercomputeco/vecshard/cmd/vecshard"
)

func main() {
	cmd := vecshardcmder.NewVecshardCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
