package risk

import (
	"context"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/piwi3910/FabriCut/internal/errors"
	"github.com/piwi3910/FabriCut/internal/model"
)

func startBufServer(t *testing.T, evaluator Evaluator) *GRPCClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterAssessmentServer(srv, NewGRPCServer(evaluator, zerolog.Nop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	client := NewGRPCClientConn(conn)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestGRPC_RoundTrip(t *testing.T) {
	client := startBufServer(t, NewGate(nil))

	verdict, err := client.Evaluate(context.Background(), model.ContextCuttingPlanCreation,
		model.Signals{"utilization": 0.96, "waste_pct": 0.04, "pieces": 500, "time_mins": 300})
	require.NoError(t, err)

	local, err := NewGate(nil).Assess(model.ContextCuttingPlanCreation,
		model.Signals{"utilization": 0.96, "waste_pct": 0.04, "pieces": 500, "time_mins": 300})
	require.NoError(t, err)
	assert.Equal(t, local, verdict)
	assert.Equal(t, model.RiskAmber, verdict.Risk)
}

func TestGRPC_UnknownContextIsValidationError(t *testing.T) {
	client := startBufServer(t, NewGate(nil))

	_, err := client.Evaluate(context.Background(), model.RiskContext("NOPE"), model.Signals{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestGRPC_StringSignals(t *testing.T) {
	client := startBufServer(t, NewGate(nil))

	verdict, err := client.Evaluate(context.Background(), model.ContextCuttingStart,
		model.Signals{"operator": "", "method": "MANUAL", "pieces": 10, "fabric_type": "Denim"})
	require.NoError(t, err)
	assert.Equal(t, model.RiskRed, verdict.Risk)
	assert.True(t, verdict.HasIssue(IssueNoOperator))
}
