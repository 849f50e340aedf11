package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
)

func TestBuilder(t *testing.T) {
	b := NewBuilder().WithInsecure().WithDefaultInterceptors()
	opts := b.DialOptions()
	// insecure credentials plus one chained unary and one chained stream interceptor
	assert.Len(t, opts, 3)

	opts[0] = grpc.EmptyDialOption{}
	assert.NotEqual(t, opts[0], b.DialOptions()[0])

	assert.Len(t, PeerDialOptions(), 4)
}
