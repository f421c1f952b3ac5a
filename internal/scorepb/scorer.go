// Package scorepb defines the gRPC Scorer service: scoring of m6A feature windows
// by the process' CNN. Messages travel as JSON (content-subtype "json").
package scorepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ScoreRequest carries Count windows flattened as [Count, Layers, Window].
type ScoreRequest struct {
	Windows []float32 `json:"windows"`
	Count   int32     `json:"count"`
}

// ScoreResponse holds one score per requested window.
type ScoreResponse struct {
	Scores []float32 `json:"scores"`
	// Precision holds the calibrated level of each score, when the model ships a
	// precision table.
	Precision []uint32 `json:"precision,omitempty"`
	// Model is the label of the classifier used, e.g. "2.2 semi".
	Model         string `json:"model"`
	CachedWindows int32  `json:"cached_windows"`
}

const (
	ServiceName           = "m6a.v1.Scorer"
	Scorer_Score_FullName = "/" + ServiceName + "/Score"
)

// ScorerServer is the server API for the Scorer service.
type ScorerServer interface {
	Score(context.Context, *ScoreRequest) (*ScoreResponse, error)
}

// UnimplementedScorerServer can be embedded to have forward compatible implementations.
type UnimplementedScorerServer struct{}

func (UnimplementedScorerServer) Score(context.Context, *ScoreRequest) (*ScoreResponse, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Score not implemented")
}

// RegisterScorerServer registers srv on s.
func RegisterScorerServer(s grpc.ServiceRegistrar, srv ScorerServer) {
	s.RegisterService(&Scorer_ServiceDesc, srv)
}

func _Scorer_Score_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ScoreRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScorerServer).Score(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: Scorer_Score_FullName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScorerServer).Score(ctx, req.(*ScoreRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// Scorer_ServiceDesc is the grpc.ServiceDesc for the Scorer service.
var Scorer_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScorerServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Score",
			Handler:    _Scorer_Score_Handler,
		},
	},
	Streams: []grpc.StreamDesc{},
}

// ScorerClient is the client API for the Scorer service.
type ScorerClient interface {
	Score(ctx context.Context, in *ScoreRequest, opts ...grpc.CallOption) (*ScoreResponse, error)
}

type scorerClient struct {
	cc grpc.ClientConnInterface
}

// NewScorerClient returns a client that sends JSON encoded messages on cc.
func NewScorerClient(cc grpc.ClientConnInterface) ScorerClient {
	return &scorerClient{cc}
}

func (c *scorerClient) Score(ctx context.Context, in *ScoreRequest, opts ...grpc.CallOption) (*ScoreResponse, error) {
	out := new(ScoreResponse)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, Scorer_Score_FullName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
