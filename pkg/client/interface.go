package client

import (
	"context"

	"github.com/menta2k/croppy/pkg/types"
)

// VisionClient is a vision-model backend able to locate the main subject of an image.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateSubject(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
