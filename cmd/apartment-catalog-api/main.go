// Package main is the entry point for the apartment catalog API server.
package main

import (
	"os"

	"github.com/turireg/apartment-catalog-server/cmd/apartment-catalog-api/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
