package main

import (
	"context"
	"math"
	"sync/atomic"

	driverrpc "breathkit/internal/modules/device/adapter/out/rpc"

	"github.com/hashicorp/go-plugin"
)

const (
	sampleRateHz = 30
	// One cycle is a 3s exhale followed by 2s of rest.
	exhaleSamples = 3 * sampleRateHz
	cycleSamples  = 5 * sampleRateHz
	peakPressure  = 0.9
)

type server struct {
	seq atomic.Uint64
}

func (s *server) GetInfo(_ context.Context, _ *driverrpc.Empty) (*driverrpc.Info, error) {
	return &driverrpc.Info{
		Name:         "simulated",
		Version:      "1.0.0",
		Model:        "synthetic breath generator",
		SampleRateHz: sampleRateHz,
	}, nil
}

func (s *server) ReadPressure(_ context.Context, _ *driverrpc.Empty) (*driverrpc.Reading, error) {
	seq := s.seq.Add(1) - 1
	return &driverrpc.Reading{Pressure: pressureAt(seq), Sequence: seq}, nil
}

// pressureAt ramps up over the first fifth of the exhale, holds, then ramps
// down; rest samples are zero.
func pressureAt(seq uint64) float64 {
	phase := int(seq % cycleSamples)
	if phase >= exhaleSamples {
		return 0
	}
	ramp := exhaleSamples / 5
	switch {
	case phase < ramp:
		return peakPressure * math.Sin(math.Pi/2*float64(phase+1)/float64(ramp))
	case phase >= exhaleSamples-ramp:
		return peakPressure * float64(exhaleSamples-phase) / float64(ramp)
	default:
		return peakPressure
	}
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: driverrpc.HandshakeConfig,
		Plugins:         driverrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
