//go:build zmq

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"syscall"
	"time"

	"github.com/pebbe/zmq4"
	"go.uber.org/zap"
)

const recvTimeout = time.Second

// startBlockSignal subscribes to the node's hashblock zmq feed and emits
// a hint whenever a new block is announced. Hints only shortcut the poll
// interval; missed messages are harmless.
func startBlockSignal(ctx context.Context, addr string, logger *zap.Logger) (<-chan struct{}, error) {
	if addr == "" {
		return nil, nil
	}

	sub, err := zmq4.NewSocket(zmq4.SUB)
	if err != nil {
		return nil, fmt.Errorf("zmq socket: %w", err)
	}
	if err := sub.SetSubscribe("hashblock"); err != nil {
		sub.Close()
		return nil, fmt.Errorf("zmq subscribe: %w", err)
	}
	// A bounded receive timeout keeps the loop responsive to shutdown.
	if err := sub.SetRcvtimeo(recvTimeout); err != nil {
		sub.Close()
		return nil, fmt.Errorf("zmq receive timeout: %w", err)
	}
	if err := sub.Connect(addr); err != nil {
		sub.Close()
		return nil, fmt.Errorf("zmq connect %s: %w", addr, err)
	}

	log := logger.Named("blockSignal")
	log.Info("listening for block announcements", zap.String("addr", addr))

	notify := make(chan struct{}, 1)
	go func() {
		defer sub.Close()
		for ctx.Err() == nil {
			parts, err := sub.RecvMessageBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) != zmq4.Errno(syscall.EAGAIN) {
					log.Warn("zmq recv failed", zap.Error(err))
					time.Sleep(time.Second)
				}
				continue
			}
			// hashblock frames: topic, 32-byte block hash, sequence.
			if len(parts) < 2 || len(parts[1]) != 32 {
				log.Warn("skipping malformed hashblock message", zap.Int("parts", len(parts)))
				continue
			}
			log.Debug("block announced", zap.String("hash", hex.EncodeToString(parts[1])))

			select {
			case notify <- struct{}{}:
			default:
				// A hint is already pending; one wake-up is enough.
			}
		}
	}()

	return notify, nil
}
