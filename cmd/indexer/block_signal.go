//go:build !zmq

package main

import (
	"context"

	"go.uber.org/zap"
)

// startBlockSignal is a no-op without the zmq build tag; the chain
// source falls back to pure tip polling.
func startBlockSignal(_ context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr != "" {
		logger.Warn("zmq address configured but binary built without zmq support",
			zap.String("addr", addr))
	}
	return nil, nil
}
