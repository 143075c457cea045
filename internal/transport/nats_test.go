package transport

// file: internal/transport/nats_test.go

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testNATSToken = "s3cret-bridge-token"

func runNATSServer(t *testing.T) string {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:          "127.0.0.1",
		Port:          -1,
		NoLog:         true,
		NoSigs:        true,
		Authorization: testNATSToken,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns.ClientURL()
}

func TestNATS_SessionExchange(t *testing.T) {
	ctx := testCtx(t)
	url := runNATSServer(t)
	opts := NATSOptions{URL: url, Name: "test", Token: testNATSToken, SubjectPrefix: "bridgetest"}

	ln, err := ListenNATSURL(opts, nil)
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, "bridgetest.requests", ln.Addr())

	client, err := NATSDialer(opts, nil)(ctx)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(ctx, []byte(`{"id":"1","method":"get_scripts","params":{}}`)))

	session, err := ln.Accept(ctx)
	require.NoError(t, err)
	msg, err := session.ReadMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","method":"get_scripts","params":{}}`, string(msg))

	// Later frames from the same server land on the same session.
	require.NoError(t, client.WriteMessage(ctx, []byte(`{"id":"2","method":"get_scripts","params":{}}`)))
	msg, err = session.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"id":"2"`)

	require.NoError(t, session.WriteMessage(ctx, []byte(`{"id":"1","success":true}`)))
	reply, err := client.ReadMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1","success":true}`, string(reply))
}

func TestNATS_SeparateServersGetSeparateSessions(t *testing.T) {
	ctx := testCtx(t)
	url := runNATSServer(t)
	opts := NATSOptions{URL: url, Token: testNATSToken}

	ln, err := ListenNATSURL(opts, nil)
	require.NoError(t, err)
	defer ln.Close()

	first, err := NATSDialer(opts, nil)(ctx)
	require.NoError(t, err)
	defer first.Close()
	second, err := NATSDialer(opts, nil)(ctx)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, first.WriteMessage(ctx, []byte(`{"id":"a"}`)))
	s1, err := ln.Accept(ctx)
	require.NoError(t, err)
	_, err = s1.ReadMessage(ctx)
	require.NoError(t, err)

	require.NoError(t, second.WriteMessage(ctx, []byte(`{"id":"b"}`)))
	s2, err := ln.Accept(ctx)
	require.NoError(t, err)
	_, err = s2.ReadMessage(ctx)
	require.NoError(t, err)

	require.NoError(t, s2.WriteMessage(ctx, []byte(`{"id":"b","success":true}`)))
	msg, err := second.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, string(msg), `"b"`)
}

func TestNATS_BadTokenFailsToConnect(t *testing.T) {
	url := runNATSServer(t)
	_, err := NATSDialer(NATSOptions{URL: url, Token: "wrong", Timeout: time.Second}, nil)(testCtx(t))
	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, ErrConnectFailed, te.Code)
}

func TestNATS_ListenerCloseClosesSessions(t *testing.T) {
	ctx := testCtx(t)
	url := runNATSServer(t)
	opts := NATSOptions{URL: url, Token: testNATSToken}

	ln, err := ListenNATSURL(opts, nil)
	require.NoError(t, err)

	client, err := NATSDialer(opts, nil)(ctx)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.WriteMessage(ctx, []byte(`{"id":"1"}`)))
	session, err := ln.Accept(ctx)
	require.NoError(t, err)

	require.NoError(t, ln.Close())
	_, err = ln.Accept(ctx)
	assert.True(t, IsClosedError(err))
	err = session.WriteMessage(ctx, []byte(`{}`))
	assert.True(t, IsClosedError(err))
}
