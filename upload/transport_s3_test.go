package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// stubS3 records PutObject calls.
type stubS3 struct {
	puts []s3.PutObjectInput
	err  error
}

func (s *stubS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.puts = append(s.puts, *params)
	if s.err != nil {
		return nil, s.err
	}
	return &s3.PutObjectOutput{}, nil
}

var _ S3API = (*stubS3)(nil)

func TestS3Transport_Send(t *testing.T) {
	stub := &stubS3{}
	transport, err := NewS3TransportWithClient(stub, S3Config{
		Bucket: "telemetry",
		Prefix: "courier",
	})
	if err != nil {
		t.Fatalf("NewS3TransportWithClient failed: %v", err)
	}

	code, err := transport.Send(context.Background(), testPayload())
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if code != http.StatusOK {
		t.Errorf("code = %d, want 200", code)
	}

	if len(stub.puts) != 1 {
		t.Fatalf("got %d puts, want 1", len(stub.puts))
	}
	put := stub.puts[0]
	if *put.Bucket != "telemetry" {
		t.Errorf("bucket = %q", *put.Bucket)
	}
	if *put.Key != "courier/logs/0001750000000000" {
		t.Errorf("key = %q", *put.Key)
	}
	if *put.ContentType != "application/json" {
		t.Errorf("content type = %q", *put.ContentType)
	}
	body, err := io.ReadAll(put.Body)
	if err != nil {
		t.Fatalf("reading put body: %v", err)
	}
	if string(body) != `[{"n":1}]` {
		t.Errorf("body = %q", body)
	}
}

func TestS3Transport_PutFailureIsRetryable(t *testing.T) {
	stub := &stubS3{err: errors.New("access denied")}
	transport, err := NewS3TransportWithClient(stub, S3Config{Bucket: "telemetry"})
	if err != nil {
		t.Fatalf("NewS3TransportWithClient failed: %v", err)
	}

	if _, err := transport.Send(context.Background(), testPayload()); err == nil {
		t.Error("Send with failing client should return an error")
	}
}

func TestS3Transport_RequiresBucket(t *testing.T) {
	if _, err := NewS3TransportWithClient(&stubS3{}, S3Config{}); err == nil {
		t.Error("missing bucket should be rejected")
	}
}
