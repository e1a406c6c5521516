package grpc

import (
	"context"
	"sync"
	"testing"

	"github.com/dmitrijs2005/imgkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordingLogger struct {
	nopLogger
	mu   sync.Mutex
	msgs []string
	args [][]any
}

func (r *recordingLogger) Debug(_ context.Context, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	r.args = append(r.args, args)
}

func (r *recordingLogger) With(...any) logging.Logger { return r }

func TestInterceptor_PassesThroughAndLogs(t *testing.T) {
	rec := &recordingLogger{}
	s := NewGRPCServer(":0", rec, nil, 0)
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	require.Len(t, rec.msgs, 1)
	assert.Equal(t, "grpc request", rec.msgs[0])
	assert.Contains(t, rec.args[0], "/grpc.health.v1.Health/Check")
	assert.Contains(t, rec.args[0], codes.OK.String())
}

func TestInterceptor_PropagatesError(t *testing.T) {
	rec := &recordingLogger{}
	s := NewGRPCServer(":0", rec, nil, 0)
	info := &grpc.UnaryServerInfo{FullMethod: "/x.Y/Z"}

	_, err := s.loggingInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.Unavailable, "down")
	})
	assert.Equal(t, codes.Unavailable, status.Code(err))
	require.Len(t, rec.args, 1)
	assert.Contains(t, rec.args[0], codes.Unavailable.String())
}
