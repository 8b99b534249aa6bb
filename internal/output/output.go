package output

import (
	"context"

	"github.com/hejijunhao/sleuth/internal/model"
)

// Output defines the interface for report destinations.
type Output interface {
	Write(ctx context.Context, r model.Report) error
	Close() error
}
