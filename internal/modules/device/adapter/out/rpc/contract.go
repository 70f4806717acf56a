package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey       = "pressure"
	serviceName        = "breathkit.driver.v1.PressureDriver"
	jsonCodecName      = "json"
	methodGetInfo      = "/" + serviceName + "/GetInfo"
	methodReadPressure = "/" + serviceName + "/ReadPressure"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "BREATHKIT_DRIVER",
	MagicCookieValue: "breathkit",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Info struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Model        string `json:"model"`
	SampleRateHz int32  `json:"sample_rate_hz"`
}

// Reading is a single pressure sample. Drivers flagged raw_hid send the
// unsigned byte value; others send the normalised value.
type Reading struct {
	Pressure float64 `json:"pressure"`
	Sequence uint64  `json:"sequence"`
}

type PressureDriverServer interface {
	GetInfo(ctx context.Context, in *Empty) (*Info, error)
	ReadPressure(ctx context.Context, in *Empty) (*Reading, error)
}

type PressureDriverClient interface {
	GetInfo(ctx context.Context) (*Info, error)
	ReadPressure(ctx context.Context) (*Reading, error)
}

type pressureDriverClient struct {
	conn *grpc.ClientConn
}

func NewPressureDriverClient(conn *grpc.ClientConn) PressureDriverClient {
	return &pressureDriverClient{conn: conn}
}

func (c *pressureDriverClient) GetInfo(ctx context.Context) (*Info, error) {
	out := &Info{}
	if err := c.conn.Invoke(ctx, methodGetInfo, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *pressureDriverClient) ReadPressure(ctx context.Context) (*Reading, error) {
	out := &Reading{}
	if err := c.conn.Invoke(ctx, methodReadPressure, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func unaryHandler(fullMethod string, call func(ctx context.Context, in *Empty) (any, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := &Empty{}
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			empty, ok := req.(*Empty)
			if !ok {
				return nil, fmt.Errorf("invalid request type")
			}
			return call(ctx, empty)
		}
		return interceptor(ctx, in, info, handler)
	}
}

func RegisterPressureDriverServer(server grpc.ServiceRegistrar, impl PressureDriverServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*PressureDriverServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetInfo",
				Handler: unaryHandler(methodGetInfo, func(ctx context.Context, in *Empty) (any, error) {
					return impl.GetInfo(ctx, in)
				}),
			},
			{
				MethodName: "ReadPressure",
				Handler: unaryHandler(methodReadPressure, func(ctx context.Context, in *Empty) (any, error) {
					return impl.ReadPressure(ctx, in)
				}),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/pressure-driver-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl PressureDriverServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterPressureDriverServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewPressureDriverClient(conn), nil
}

func PluginMap(impl PressureDriverServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
