package main

import (
	"fmt"
	"os"

	"github.com/sirosfoundation/go-as4-gateway/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
