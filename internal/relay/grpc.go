package relay

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/64envy64/cargo-bot/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName       = "cargobot.relay.v1.Relay"
	sendMessageMethod = "/" + serviceName + "/SendMessage"
	secretHeader      = "x-relay-secret"
)

// relayServer is the server side of the relay service. Messages are
// structpb.Struct so the service needs no generated code.
type relayServer interface {
	SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

var relayServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*relayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SendMessage", Handler: sendMessageHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "relay.proto",
}

func sendMessageHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(relayServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: sendMessageMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(relayServer).SendMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

type grpcRelay struct {
	svc *Service
}

func (g *grpcRelay) SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	userID := int64(fields["user_id"].GetNumberValue())
	text := fields["text"].GetStringValue()

	if err := g.svc.Deliver(ctx, userID, text); err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		slog.Error("gRPC relay delivery failed", "user_id", userID, "error", err)
		return nil, status.Error(codes.Internal, "failed to send message")
	}
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

// secretInterceptor rejects calls without the shared secret. Health checks
// are open.
func secretInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if info.FullMethod != sendMessageMethod {
			return handler(ctx, req)
		}
		md, _ := metadata.FromIncomingContext(ctx)
		var got string
		if vals := md.Get(secretHeader); len(vals) > 0 {
			got = vals[0]
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			slog.Warn("gRPC relay call with invalid secret")
			return nil, status.Error(codes.PermissionDenied, "invalid secret key")
		}
		return handler(ctx, req)
	}
}

// NewGRPCServer builds a gRPC server exposing svc and the standard health service.
func NewGRPCServer(svc *Service, secret string) *grpc.Server {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(secretInterceptor(secret)),
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: 2 * time.Minute, Timeout: 10 * time.Second}),
	)
	srv.RegisterService(&relayServiceDesc, &grpcRelay{svc: svc})

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// GRPCClient calls the relay over gRPC.
type GRPCClient struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	secret  string
	timeout time.Duration
}

var _ Deliverer = (*GRPCClient)(nil)

// NewGRPCClient connects to the relay at addr. The connection is
// established lazily; a responder that is not up yet is only logged.
func NewGRPCClient(addr, secret string, timeout time.Duration) (*GRPCClient, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create relay client for %s: %w", addr, err)
	}

	readyCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := waitForReady(readyCtx, conn); err != nil {
		slog.Warn("Relay not reachable yet", "address", addr, "error", err)
	}

	return &GRPCClient{
		conn:    conn,
		health:  healthpb.NewHealthClient(conn),
		secret:  secret,
		timeout: timeout,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errors.New("connection shutdown")
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Deliver asks the responder to send text to userID.
func (c *GRPCClient) Deliver(ctx context.Context, userID int64, text string) error {
	in, err := structpb.NewStruct(map[string]any{"user_id": userID, "text": text})
	if err != nil {
		return fmt.Errorf("encode relay request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, secretHeader, c.secret)

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, sendMessageMethod, in, out); err != nil {
		switch status.Code(err) {
		case codes.PermissionDenied:
			return fmt.Errorf("relay rejected secret: %w", domain.ErrUnauthorized)
		case codes.InvalidArgument:
			return fmt.Errorf("relay rejected request: %w", domain.ErrInvalidInput)
		}
		return fmt.Errorf("relay call: %w", err)
	}
	return nil
}

// Healthy queries the standard gRPC health service.
func (c *GRPCClient) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: serviceName})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("responder unhealthy: %s", resp.GetStatus())
	}
	return nil
}

// Close releases the connection.
func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
