// kinectd polls a body-tracking sensor and serves its latest frames over
// HTTP and websockets.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-kinect/internal/log"
	"github.com/teslashibe/go-kinect/pkg/device"
	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/sensor/backend"
	"github.com/teslashibe/go-kinect/pkg/sensor/webcam"
	"github.com/teslashibe/go-kinect/pkg/web"
)

// Init retry bounds while the sensor is unplugged or the upstream is down.
const (
	initRetryBase = 500 * time.Millisecond
	initRetryMax  = 10 * time.Second
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	if opts.ListBackends {
		for _, b := range backend.AvailableBackends() {
			fmt.Println(b)
		}
		return
	}

	log.Init(opts.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, log.L()); err != nil {
		log.Error("kinectd failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts Options, logger *slog.Logger) error {
	bcfg, err := opts.backendConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if opts.FetchModel {
		if _, err := webcam.EnsureModel(ctx, bcfg.Webcam, "", logger); err != nil {
			return err
		}
	}

	var srv *web.Server
	poller, err := device.Instance(func() (*device.Poller, error) {
		dev, err := backend.New(bcfg, logger)
		if err != nil {
			return nil, err
		}
		return device.New(dev, opts.deviceConfig(),
			device.WithLogger(logger),
			device.WithUpdateHook(func(kind sensor.StreamKind) {
				srv.HandleUpdate(kind)
			}),
		)
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := device.DeleteInstance(); err != nil {
			logger.Warn("sensor release failed", "error", err)
		}
	}()

	srv = web.NewServer(poller, opts.webConfig(), logger)

	if err := initWithRetry(ctx, poller, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return poller.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})

	logger.Info("kinectd running",
		"backend", poller.Backend(),
		"device_id", poller.DeviceID(),
		"streams", poller.OpenStreams(),
	)
	return g.Wait()
}

// initWithRetry calls Init until it succeeds, fails with something other
// than an unavailable device, or ctx ends.
func initWithRetry(ctx context.Context, p *device.Poller, logger *slog.Logger) error {
	delay := initRetryBase
	for {
		err := p.Init(ctx)
		if err == nil || !errors.Is(err, sensor.ErrDeviceUnavailable) {
			return err
		}
		logger.Warn("sensor unavailable, retrying", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*2, initRetryMax)
	}
}
