package server

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/dtroode/townsquare-auth/internal/mocks"
)

func TestGRPCServer_Address(t *testing.T) {
	s := NewGRPCServer(grpc.NewServer(), ":0", nil)
	assert.Equal(t, ":0", s.Address())
}

func TestGRPCServer_Stop(t *testing.T) {
	drained := false
	s := NewGRPCServer(grpc.NewServer(), ":0", func() { drained = true })

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, drained)
}

func TestGRPCServer_Start_ListenError(t *testing.T) {
	sec := mocks.NewSecurityLayer(t)
	sec.On("Listen", "tcp", ":0").Return(nil, assert.AnError).Once()

	err := NewGRPCServer(grpc.NewServer(), ":0", nil).Start(sec)
	require.ErrorIs(t, err, assert.AnError)
}

func TestGRPCServer_Start_ListensAndServes(t *testing.T) {
	srv := NewGRPCServer(grpc.NewServer(), ":0", nil)
	sec := mocks.NewSecurityLayer(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	listening := make(chan struct{})
	sec.On("Listen", "tcp", ":0").Return(ln, nil).Run(func(mock.Arguments) { close(listening) }).Once()

	served := make(chan error, 1)
	go func() { served <- srv.Start(sec) }()
	<-listening

	require.NoError(t, srv.Stop(context.Background()))
	// Stop may win the race against Serve.
	if err := <-served; err != nil {
		require.ErrorIs(t, err, grpc.ErrServerStopped)
	}
}
