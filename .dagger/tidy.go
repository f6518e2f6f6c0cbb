package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/vecshard/internal/dagger"
)

// CheckTidy fails when "go mod tidy" would change go.mod or go.sum, or when
// any Go file is not gofmt-formatted.
//
// +check
func (v *Vecshard) CheckTidy(ctx context.Context) (string, error) {
	out, err := v.goContainer().
		WithExec([]string{"cp", "go.mod", "/tmp/go.mod.HEAD"}).
		WithExec([]string{"cp", "go.sum", "/tmp/go.sum.HEAD"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{
			"sh", "-c",
			"diff -u /tmp/go.mod.HEAD go.mod && diff -u /tmp/go.sum.HEAD go.sum",
		}).
		WithExec([]string{
			"sh", "-c",
			`unformatted=$(gofmt -l $(git ls-files '*.go' 2>/dev/null || find . -name '*.go' -not -path './_*')); ` +
				`if [ -n "$unformatted" ]; then echo "$unformatted"; exit 1; fi`,
		}).
		Stdout(ctx)

	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("source is not tidy: run 'go mod tidy' and 'gofmt -w .'\n\n%s%s", e.Stdout, e.Stderr)
	} else if err != nil {
		return "", fmt.Errorf("unexpected error: %w", err)
	}

	return fmt.Sprintf("go.mod, go.sum and formatting are tidy: %s", out), nil
}
