package llm

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// startStructServer serves every method with handle, speaking structpb messages.
func startStructServer(
	t *testing.T,
	handle func(method string, md metadata.MD, req *structpb.Struct) (*structpb.Struct, error),
) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnknownServiceHandler(func(_ any, stream grpc.ServerStream) error {
		method, _ := grpc.MethodFromServerStream(stream)
		req := &structpb.Struct{}
		if err := stream.RecvMsg(req); err != nil {
			return err
		}
		md, _ := metadata.FromIncomingContext(stream.Context())
		resp, err := handle(method, md, req)
		if err != nil {
			return err
		}
		return stream.SendMsg(resp)
	}))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(
		"passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestGRPCBackend_TextField(t *testing.T) {
	conn := startStructServer(t, func(method string, md metadata.MD, req *structpb.Struct) (*structpb.Struct, error) {
		if method != DefaultGRPCMethod {
			t.Errorf("method = %s", method)
		}
		if got := md.Get("authorization"); len(got) != 1 || got[0] != "Bearer key-9999" {
			t.Errorf("authorization = %v", got)
		}
		if req.GetFields()["prompt"].GetStringValue() != "classify me" {
			t.Errorf("prompt not forwarded: %v", req)
		}
		return structpb.NewStruct(map[string]any{
			"text": `{"is_positive":false,"categories":[],"confidence":"medium","reasoning":"r"}`,
		})
	})

	b := newGRPCBackendWithConn(conn, "bufnet", "", time.Second)
	raw, err := b.Classify(context.Background(), "key-9999", "classify me")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v", err)
	}
	if v.IsPositive || v.Confidence != "medium" {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestGRPCBackend_VerdictObject(t *testing.T) {
	conn := startStructServer(t, func(string, metadata.MD, *structpb.Struct) (*structpb.Struct, error) {
		return structpb.NewStruct(map[string]any{
			"is_positive": true,
			"categories":  []any{"AI Hallucination"},
			"confidence":  "high",
			"reasoning":   "confabulation",
		})
	})

	b := newGRPCBackendWithConn(conn, "bufnet", "/custom.Svc/Run", time.Second)
	raw, err := b.Classify(context.Background(), "k", "p")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, err := ParseVerdict(raw)
	if err != nil {
		t.Fatalf("ParseVerdict failed: %v (%s)", err, raw)
	}
	if !v.IsPositive || len(v.Categories) != 1 || v.Categories[0] != "AI Hallucination" {
		t.Errorf("unexpected verdict %+v", v)
	}
}

func TestGRPCBackend_RetryInfo(t *testing.T) {
	conn := startStructServer(t, func(string, metadata.MD, *structpb.Struct) (*structpb.Struct, error) {
		st, err := status.New(codes.ResourceExhausted, "quota exceeded").WithDetails(
			&errdetails.RetryInfo{RetryDelay: durationpb.New(7 * time.Second)},
		)
		if err != nil {
			return nil, err
		}
		return nil, st.Err()
	})

	b := newGRPCBackendWithConn(conn, "bufnet", "", time.Second)
	_, err := b.Classify(context.Background(), "k", "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ResourceExhausted") || !strings.Contains(err.Error(), "7s") {
		t.Errorf("error should carry code and retry delay: %v", err)
	}
}
