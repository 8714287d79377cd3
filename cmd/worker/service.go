package main

import (
	"context"
)

type WarmWorkerService interface {
	WarmPresets(ctx context.Context, originalID string) error
}
