package risk

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

// ServiceName is the gRPC service exposing risk evaluation. Requests and
// responses are google.protobuf.Struct messages:
//
//	request:  {"context": "CUTTING_START", "signals": {...}}
//	response: RiskVerdict as JSON object
const ServiceName = "fabricut.risk.v1.RiskAssessment"

const evaluateMethod = "/" + ServiceName + "/Evaluate"

// AssessmentServer is the server API for the risk assessment service.
type AssessmentServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the risk assessment service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AssessmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Evaluate",
			Handler:    evaluateHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fabricut/risk/v1/risk.proto",
}

func evaluateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AssessmentServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: evaluateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AssessmentServer).Evaluate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAssessmentServer registers srv on s.
func RegisterAssessmentServer(s grpc.ServiceRegistrar, srv AssessmentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// GRPCServer exposes an Evaluator over gRPC.
type GRPCServer struct {
	evaluator Evaluator
	log       zerolog.Logger
}

// NewGRPCServer creates a gRPC server backed by evaluator.
func NewGRPCServer(evaluator Evaluator, log zerolog.Logger) *GRPCServer {
	return &GRPCServer{evaluator: evaluator, log: log}
}

// Evaluate decodes the request, runs the evaluator and encodes the verdict.
func (s *GRPCServer) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fields := req.AsMap()
	rc, _ := fields["context"].(string)
	if rc == "" {
		return nil, status.Error(codes.InvalidArgument, "context is required")
	}
	signals := model.Signals{}
	if raw, ok := fields["signals"].(map[string]interface{}); ok {
		for k, v := range raw {
			signals[k] = v
		}
	}

	verdict, err := s.evaluator.Evaluate(ctx, model.RiskContext(rc), signals)
	if err != nil {
		code := apperrors.CodeOf(err)
		s.log.Warn().Err(err).Str("context", rc).Msg("risk evaluation failed")
		return nil, status.Error(apperrors.GRPCCode(code), apperrors.Public(err).Message)
	}

	s.log.Debug().
		Str("context", rc).
		Str("risk", string(verdict.Risk)).
		Int("issues", len(verdict.Issues)).
		Msg("risk evaluated")

	return verdictToStruct(verdict)
}

// GRPCClient calls a remote risk assessment service.
type GRPCClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewGRPCClient creates a client for the service listening at addr.
func NewGRPCClient(addr string) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

// NewGRPCClientConn wraps an existing connection.
func NewGRPCClientConn(conn *grpc.ClientConn) *GRPCClient {
	return &GRPCClient{conn: conn}
}

// WithTimeout bounds every Evaluate call by d. Zero disables the bound.
func (c *GRPCClient) WithTimeout(d time.Duration) *GRPCClient {
	c.timeout = d
	return c
}

// Close closes the gRPC connection
func (c *GRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Evaluate implements Evaluator. Transport failures are reported as internal
// errors so callers fail closed.
func (c *GRPCClient) Evaluate(ctx context.Context, rc model.RiskContext, signals model.Signals) (model.RiskVerdict, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"context": string(rc),
		"signals": normalizeSignals(signals),
	})
	if err != nil {
		return model.RiskVerdict{}, apperrors.InvalidInput("signals", err.Error())
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, evaluateMethod, req, resp); err != nil {
		if st, ok := status.FromError(err); ok && st.Code() == codes.InvalidArgument {
			return model.RiskVerdict{}, apperrors.InvalidInput("context", st.Message())
		}
		return model.RiskVerdict{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "risk assessment call failed")
	}
	return structToVerdict(resp)
}

// normalizeSignals converts values to the types structpb accepts.
func normalizeSignals(signals model.Signals) map[string]interface{} {
	out := make(map[string]interface{}, len(signals))
	for k, v := range signals {
		if n, ok := signals.Number(k); ok {
			out[k] = n
			continue
		}
		out[k] = v
	}
	return out
}

func verdictToStruct(v model.RiskVerdict) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode verdict")
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode verdict")
	}
	return structpb.NewStruct(m)
}

func structToVerdict(s *structpb.Struct) (model.RiskVerdict, error) {
	data, err := s.MarshalJSON()
	if err != nil {
		return model.RiskVerdict{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to decode verdict")
	}
	var v model.RiskVerdict
	if err := json.Unmarshal(data, &v); err != nil {
		return model.RiskVerdict{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to decode verdict")
	}
	return v, nil
}
