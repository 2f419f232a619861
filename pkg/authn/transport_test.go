package authn_test

import (
	"context"
	"net"
	"testing"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/retrade/authmesh/pkg/authn"
	"github.com/retrade/authmesh/pkg/jwtx"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// stompRoundTrip runs the server handshake on one end of a pipe while the
// test plays the client on the other.
func stompRoundTrip(t *testing.T, v *authn.Verifier, connect *frame.Frame) (authn.Identity, *frame.Frame, error) {
	t.Helper()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	type result struct {
		id  authn.Identity
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := authn.StompHandshake(context.Background(), v, server)
		done <- result{id, err}
	}()

	require.NoError(t, frame.NewWriter(client).Write(connect))
	reply, err := frame.NewReader(client).Read()
	require.NoError(t, err)

	res := <-done
	return res.id, reply, res.err
}

func TestStompHandshake(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)

	t.Run("authorization header", func(t *testing.T) {
		connect := frame.New(frame.CONNECT,
			frame.AcceptVersion, "1.2",
			frame.Host, "notifier",
			"Authorization", "Bearer "+set.Raw(jwtx.KindAccess),
		)
		id, reply, err := stompRoundTrip(t, e.access, connect)
		require.NoError(t, err)
		require.Equal(t, "alice", id.Username)
		require.Equal(t, frame.CONNECTED, reply.Command)
	})

	t.Run("passcode fallback", func(t *testing.T) {
		connect := frame.New(frame.STOMP,
			frame.AcceptVersion, "1.2",
			frame.Login, "alice",
			frame.Passcode, set.Raw(jwtx.KindAccess),
		)
		_, reply, err := stompRoundTrip(t, e.access, connect)
		require.NoError(t, err)
		require.Equal(t, frame.CONNECTED, reply.Command)
	})

	t.Run("refresh token refused", func(t *testing.T) {
		connect := frame.New(frame.CONNECT, frame.Passcode, set.Raw(jwtx.KindRefresh))
		_, reply, err := stompRoundTrip(t, e.access, connect)
		require.ErrorIs(t, err, jwtx.ErrInvalidKind)
		require.Equal(t, frame.ERROR, reply.Command)
		require.Equal(t, "unauthorized", reply.Header.Get(frame.Message))
	})

	t.Run("not a connect frame", func(t *testing.T) {
		_, reply, err := stompRoundTrip(t, e.access, frame.New(frame.SEND, frame.Destination, "/queue/x"))
		require.ErrorIs(t, err, authn.ErrNotConnectFrame)
		require.Equal(t, frame.ERROR, reply.Command)
	})
}

func TestUnaryServerInterceptor(t *testing.T) {
	e := newEnv(t)
	set := e.login(t, false)

	interceptor := authn.UnaryServerInterceptor(e.access, map[string]bool{"/svc/Public": true})

	var seen authn.Identity
	handler := func(ctx context.Context, _ any) (any, error) {
		seen, _ = authn.IdentityFromContext(ctx)
		return "ok", nil
	}

	call := func(method, authorization string) error {
		ctx := context.Background()
		if authorization != "" {
			ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", authorization))
		}
		_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
		return err
	}

	t.Run("valid access token", func(t *testing.T) {
		require.NoError(t, call("/svc/Private", "Bearer "+set.Raw(jwtx.KindAccess)))
		require.Equal(t, "acc-alice", seen.Subject)
	})

	t.Run("missing token", func(t *testing.T) {
		err := call("/svc/Private", "")
		require.Equal(t, codes.Unauthenticated, status.Code(err))
		require.Equal(t, "unauthorized", status.Convert(err).Message())
	})

	t.Run("wrong kind gives the same reply", func(t *testing.T) {
		err := call("/svc/Private", "Bearer "+set.Raw(jwtx.KindRefresh))
		require.Equal(t, codes.Unauthenticated, status.Code(err))
		require.Equal(t, "unauthorized", status.Convert(err).Message())
	})

	t.Run("public method", func(t *testing.T) {
		seen = authn.Identity{}
		require.NoError(t, call("/svc/Public", ""))
		require.Empty(t, seen.Subject)
	})
}

func TestBearerCredentials(t *testing.T) {
	md, err := authn.BearerCredentials{Token: "abc"}.GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer abc", md["authorization"])
	require.True(t, authn.BearerCredentials{}.RequireTransportSecurity())
	require.False(t, authn.BearerCredentials{Insecure: true}.RequireTransportSecurity())
}
