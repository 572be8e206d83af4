package handlers

import (
	"context"
	"io"

	"casewatch/api_outliers/internal/pipeline"
)

type Processor interface {
	Process(ctx context.Context, r io.Reader) (*pipeline.Outcome, error)
}
