package llm

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultGRPCMethod is the full method name used when none is configured.
const DefaultGRPCMethod = "/papersift.classifier.v1.ClassifierService/Classify"

// GRPCBackend classifies through a unary gRPC method whose request and response
// are google.protobuf.Struct. The request carries {"prompt": ...}; the response
// is either {"text": "<json>"} or the verdict object itself.
type GRPCBackend struct {
	endpoint string
	method   string
	timeout  time.Duration
	conn     *grpc.ClientConn
}

var _ Backend = (*GRPCBackend)(nil)

// NewGRPCBackend creates a client for endpoint. TLS is used for https:// or :443 targets.
func NewGRPCBackend(ctx context.Context, endpoint, method string, timeout time.Duration) (*GRPCBackend, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("grpc backend requires an endpoint")
	}

	target := endpoint
	var opts []grpc.DialOption

	if strings.HasPrefix(endpoint, "https://") || strings.HasSuffix(endpoint, ":443") {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		target = strings.TrimPrefix(target, "https://")
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
		target = strings.TrimPrefix(target, "http://")
	}

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}

	return newGRPCBackendWithConn(conn, endpoint, method, timeout), nil
}

func newGRPCBackendWithConn(
	conn *grpc.ClientConn,
	endpoint, method string,
	timeout time.Duration,
) *GRPCBackend {
	if method == "" {
		method = DefaultGRPCMethod
	}
	return &GRPCBackend{
		endpoint: endpoint,
		method:   method,
		timeout:  timeout,
		conn:     conn,
	}
}

// Name returns the backend identifier.
func (b *GRPCBackend) Name() string { return BackendGRPC }

// Classify invokes the configured method with the prompt.
func (b *GRPCBackend) Classify(ctx context.Context, apiKey, prompt string) (string, error) {
	req, err := structpb.NewStruct(map[string]any{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+apiKey)

	resp := &structpb.Struct{}
	if err := b.conn.Invoke(ctx, b.method, req, resp); err != nil {
		return "", describeStatus(err)
	}

	if text, ok := resp.GetFields()["text"]; ok {
		return text.GetStringValue(), nil
	}

	raw, err := resp.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode response: %w", err)
	}
	return string(raw), nil
}

// Close closes the underlying connection.
func (b *GRPCBackend) Close() error {
	return b.conn.Close()
}

func describeStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("grpc call: %w", err)
	}

	for _, d := range st.Details() {
		if ri, ok := d.(*errdetails.RetryInfo); ok && ri.GetRetryDelay() != nil {
			return fmt.Errorf(
				"grpc %s: %s (retry after %s)",
				st.Code(), st.Message(), ri.GetRetryDelay().AsDuration(),
			)
		}
	}
	return fmt.Errorf("grpc %s: %s", st.Code(), st.Message())
}
