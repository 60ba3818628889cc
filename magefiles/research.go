//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Research builds the CLI and runs one saved session for $QUESTION,
// writing the session YAML and a metrics snapshot under output/.
func Research() error {
	question := os.Getenv("QUESTION")
	if question == "" {
		return fmt.Errorf("QUESTION is not set")
	}
	mg.Deps(Init, Build)

	stamp := time.Now().Format("20060102-150405")
	out := filepath.Join("output", "sessions", stamp+".yaml")
	metricsFile := filepath.Join("output", "metrics", stamp+".prom")

	args := []string{"research", "--save", "--out", out, "--metrics-file", metricsFile}
	if tier := os.Getenv("TIER"); tier != "" {
		args = append(args, "--tier", tier)
	}
	args = append(args, question)
	return sh.RunV(filepath.Join(binDir, binName), args...)
}
