package client

import (
	"context"

	"github.com/menta2k/facade-measure/pkg/types"
)

// VisionClient is a multimodal model backend
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeFacade(ctx context.Context, model, prompt, imgB64 string) (*types.FacadeAnalysis, error)
}
