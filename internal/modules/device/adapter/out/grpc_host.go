package out

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	driverrpc "breathkit/internal/modules/device/adapter/out/rpc"
	"breathkit/internal/modules/device/domain"
	deviceout "breathkit/internal/modules/device/port/out"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 500 * time.Millisecond
)

type GRPCHost struct {
	logger      hclog.Logger
	callTimeout time.Duration
}

// NewGRPCHost launches drivers as go-plugin subprocesses. A non-positive
// callTimeout selects the default per-read budget.
func NewGRPCHost(logger hclog.Logger, callTimeout time.Duration) deviceout.DriverHost {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &GRPCHost{logger: logger.Named("driver"), callTimeout: callTimeout}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	_, err := h.GetInfo(ctx, manifest)
	return err
}

func (h *GRPCHost) GetInfo(ctx context.Context, manifest domain.Manifest) (domain.DriverInfo, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return domain.DriverInfo{}, err
	}
	defer closeFn()

	callCtx, cancel := callContext(ctx, defaultStartTimeout)
	defer cancel()
	info, err := client.GetInfo(callCtx)
	if err != nil {
		return domain.DriverInfo{}, fmt.Errorf("get info: %w", err)
	}
	return domain.DriverInfo{
		Name:         info.Name,
		Version:      info.Version,
		Model:        info.Model,
		SampleRateHz: int(info.SampleRateHz),
	}, nil
}

// Connect keeps the driver process alive until the returned sampler is
// closed.
func (h *GRPCHost) Connect(_ context.Context, manifest domain.Manifest) (deviceout.Sampler, error) {
	client, closeFn, err := h.connect(manifest)
	if err != nil {
		return nil, err
	}
	h.logger.Debug("driver connected", "name", manifest.Name, "version", manifest.Version)
	return &driverSampler{name: manifest.Name, client: client, closeFn: closeFn, timeout: h.callTimeout}, nil
}

func (h *GRPCHost) connect(manifest domain.Manifest) (driverrpc.PressureDriverClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  driverrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          driverrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           h.logger.With("driver", manifest.Name),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start driver client: %w", err)
	}
	raw, err := rpcClient.Dispense(driverrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense driver: %w", err)
	}
	typed, ok := raw.(driverrpc.PressureDriverClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("driver rpc client type mismatch")
	}
	return typed, closeFn, nil
}

type driverSampler struct {
	name    string
	client  driverrpc.PressureDriverClient
	timeout time.Duration

	once    sync.Once
	closeFn func()
}

func (s *driverSampler) Next(ctx context.Context) (float64, error) {
	callCtx, cancel := callContext(ctx, s.timeout)
	defer cancel()
	reading, err := s.client.ReadPressure(callCtx)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return 0, fmt.Errorf("%w: %s", domain.ErrDriverTimeout, s.name)
		}
		return 0, fmt.Errorf("read pressure: %w", err)
	}
	return reading.Pressure, nil
}

func (s *driverSampler) Close() error {
	s.once.Do(s.closeFn)
	return nil
}

func callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
