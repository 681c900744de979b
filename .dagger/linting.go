package main

import (
	"context"
	"fmt"

	"dagger/khroma/internal/dagger"
)

const golangciLintVersion = "v2.8.0"

// lintOpts layers golangci-lint on top of goContainer() so the Go caches are
// already in place.
func (k *Khroma) lintOpts() dagger.GolangcilintOpts {
	base := k.goContainer().
		WithExec([]string{
			"go",
			"install",
			fmt.Sprintf("github.com/golangci/golangci-lint/v2/cmd/golangci-lint@%s", golangciLintVersion),
		})

	return dagger.GolangcilintOpts{
		BaseCtr: base,
	}
}

// CheckLint runs golangci-lint without applying fixes.
func (k *Khroma) CheckLint(ctx context.Context) (string, error) {
	return dag.Golangcilint(k.Source, k.lintOpts()).Check(ctx)
}

// FixLint runs golangci-lint with --fix and returns the modified source.
func (k *Khroma) FixLint(ctx context.Context) *dagger.Directory {
	return dag.Golangcilint(k.Source, k.lintOpts()).Lint()
}
