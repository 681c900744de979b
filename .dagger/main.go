// Khroma CI
//
// Package main runs the khroma client checks reproducibly, locally and in
// GitHub actions.
package main

import (
	"context"

	"dagger/khroma/internal/dagger"
)

// Khroma is the main module for the khroma CI pipeline
type Khroma struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Khroma CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", "build", "tmp"]
	source *dagger.Directory,
) *Khroma {
	return &Khroma{
		Source: source,
	}
}

// goContainer returns a Go container with the module cache mounted and the
// project source in /src. The client is pure Go, so CGO stays off.
func (k *Khroma) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", k.Source)
}

// Test runs the unit tests, including the end to end suites against the
// in-memory server in pkg/khroma/khromatest.
//
// +check
func (k *Khroma) Test(ctx context.Context) (string, error) {
	return k.goContainer().
		WithExec([]string{"go", "test", "-race", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
//
// +check
func (k *Khroma) Vet(ctx context.Context) (string, error) {
	return k.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
