// Package loader defines the contract surface between the orchestrator
// and the three modality loaders, plus the configuration bundle they
// share.
package loader

import (
	"context"
	"fmt"

	"github.com/geoscape-io/stacube/internal/cube"
	"github.com/geoscape-io/stacube/internal/grid"
	"github.com/geoscape-io/stacube/internal/stac"
)

// Raster loads gridded imagery items onto the shared grid.
type Raster interface {
	Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg Config) (*cube.Dataset, error)
}

// Vector loads geometric feature items onto the shared grid.
type Vector interface {
	Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg Config) (*cube.Dataset, error)
}

// Point loads discrete geolocated records onto the shared grid.
type Point interface {
	Load(ctx context.Context, items []stac.Item, g grid.Grid, cfg Config) (*cube.Dataset, error)
}

// LoadError marks a modality loader failure. Loader errors are never
// retried; they surface unchanged to the caller of Load.
type LoadError struct {
	Modality string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Modality, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
