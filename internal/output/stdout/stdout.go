package stdout

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hejijunhao/sleuth/internal/model"
	"github.com/hejijunhao/sleuth/internal/output"
)

// Output writes reports to stdout as JSON or text.
type Output struct {
	w      io.Writer
	format output.Format
	pretty bool
}

// New creates a new stdout Output. pretty indents JSON and is ignored for
// text.
func New(format output.Format, pretty bool) *Output {
	return &Output{w: os.Stdout, format: format, pretty: pretty}
}

func (o *Output) Write(_ context.Context, r model.Report) error {
	if err := output.Render(o.w, r, o.format, o.pretty); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}
