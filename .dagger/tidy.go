package main

import (
	"context"
	"errors"
	"fmt"

	"dagger/khroma/internal/dagger"
)

// CheckGoModTidy fails when "go mod tidy" would change go.mod or go.sum.
// The client is imported by other modules, so its requirements must stay
// exact.
//
// +check
func (k *Khroma) CheckGoModTidy(ctx context.Context) (string, error) {
	out, err := k.goContainer().
		WithExec([]string{"sh", "-c", "cp go.mod /tmp/go.mod.orig && cp go.sum /tmp/go.sum.orig"}).
		WithExec([]string{"go", "mod", "tidy"}).
		WithExec([]string{"go", "mod", "verify"}).
		WithExec([]string{
			"sh", "-c",
			"diff -u /tmp/go.mod.orig go.mod && diff -u /tmp/go.sum.orig go.sum",
		}).
		Stdout(ctx)

	var e *dagger.ExecError
	if errors.As(err, &e) {
		return "", fmt.Errorf("module files are not tidy, run 'go mod tidy':\n\n%s", e.Stdout)
	}
	if err != nil {
		return "", fmt.Errorf("checking module files: %w", err)
	}

	return fmt.Sprintf("module files are tidy: %s", out), nil
}
