package exchange_test

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absmach/rotor/exchange"
	"github.com/absmach/rotor/model"
)

func TestRequestCodecRoundTrip(t *testing.T) {
	cases := []struct {
		desc string
		req  exchange.Request
	}{
		{
			desc: "register request",
			req: exchange.Request{
				Kind:        exchange.KindRegister,
				ComponentID: "node-1",
				IP:          "127.0.0.1",
				Port:        "50051",
			},
		},
		{
			desc: "role request without address",
			req: exchange.Request{
				Kind:        exchange.KindGetRoleAndModel,
				ComponentID: "node-1",
			},
		},
		{
			desc: "bare features request",
			req:  exchange.Request{Kind: exchange.KindGetFeaturesDB},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			data, err := exchange.EncodeRequest(tc.req)
			require.Nil(t, err)

			got, err := exchange.DecodeRequest(data)
			require.Nil(t, err)
			assert.Equal(t, tc.req, got)
		})
	}
}

func TestReplyCodecRoundTrip(t *testing.T) {
	rep := exchange.Reply{
		Status:     exchange.StatusOK,
		Role:       exchange.RoleClient,
		Aggregator: &exchange.Participant{ComponentID: "node-2", IP: "10.0.0.2", Port: "50051"},
		Model:      model.Transport{"w": {0.1, 0.2}},
	}

	data, err := exchange.EncodeReply(rep)
	require.Nil(t, err)

	got, err := exchange.DecodeReply(data)
	require.Nil(t, err)
	assert.Equal(t, rep, got)
}

func TestDecodeRequestMalformed(t *testing.T) {
	_, err := exchange.DecodeRequest([]byte("not cbor at all"))
	assert.ErrorIs(t, err, exchange.ErrProtocol)
}

// echoHandler answers every known kind with a fixed reply per kind.
type echoHandler struct{}

func (echoHandler) Handle(_ context.Context, req exchange.Request) exchange.Reply {
	switch req.Kind {
	case exchange.KindRegister:
		return exchange.Reply{Status: exchange.StatusOK, Info: "registered"}
	case exchange.KindGetFeaturesDB:
		return exchange.Reply{
			Status:           exchange.StatusOK,
			DatabaseFeatures: map[string]string{"feature_db": "features.db"},
		}
	case exchange.KindGetAggregator:
		return exchange.Reply{
			Status:     exchange.StatusOK,
			Aggregator: &exchange.Participant{ComponentID: "node-2", IP: "10.0.0.2", Port: "50051"},
		}
	case exchange.KindGetRoleAndModel:
		return exchange.Reply{
			Status: exchange.StatusOK,
			Role:   exchange.RoleClient,
			Model:  model.Transport{"w": {0.5}},
		}
	default:
		return exchange.Reply{Status: exchange.StatusError, Info: "unknown_msg_type"}
	}
}

func freePort(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	defer l.Close()

	_, port, err := net.SplitHostPort(l.Addr().String())
	require.Nil(t, err)

	return port
}

func startServer(t *testing.T, handler exchange.Handler) string {
	t.Helper()

	port := freePort(t)
	addr := "127.0.0.1:" + port
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- exchange.NewServer(addr, handler, logger).Listen(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.Nil(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})

	return "ws://" + addr + "/"
}

func dialRetry(t *testing.T, url string) *exchange.Client {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		client, err := exchange.Dial(ctx, url)
		if err == nil {
			return client
		}
		select {
		case <-ctx.Done():
			t.Fatalf("failed to dial %s: %s", url, err)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestClientServerExchange(t *testing.T) {
	url := startServer(t, echoHandler{})

	client := dialRetry(t, url)
	defer client.Close()

	rep, err := client.Register(exchange.Participant{ComponentID: "node-1", IP: "127.0.0.1", Port: "50051"})
	require.Nil(t, err)
	assert.Equal(t, exchange.StatusOK, rep.Status)
	assert.Equal(t, "registered", rep.Info)

	features, err := client.GetFeaturesDB()
	require.Nil(t, err)
	assert.Equal(t, map[string]string{"feature_db": "features.db"}, features)

	agg, err := client.GetAggregator()
	require.Nil(t, err)
	require.NotNil(t, agg)
	assert.Equal(t, "node-2", agg.ComponentID)

	assignment, err := client.WaitForRole(context.Background(), "node-1", time.Millisecond)
	require.Nil(t, err)
	assert.Equal(t, exchange.RoleClient, assignment.Role)
	assert.Equal(t, model.Transport{"w": {0.5}}, assignment.Model)
}

func TestServerMalformedMessageKeepsConnection(t *testing.T) {
	url := startServer(t, echoHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var conn *websocket.Conn
	for {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			t.Fatalf("failed to dial %s: %s", url, err)
		case <-time.After(10 * time.Millisecond):
		}
	}
	defer conn.Close()

	require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, []byte{0xff, 0x00, 0x01}))

	_, raw, err := conn.ReadMessage()
	require.Nil(t, err)
	rep, err := exchange.DecodeReply(raw)
	require.Nil(t, err)
	assert.Equal(t, exchange.StatusError, rep.Status)
	assert.Equal(t, "malformed_message", rep.Info)

	// The session survives the malformed frame.
	data, err := exchange.EncodeRequest(exchange.Request{Kind: exchange.KindRegister, ComponentID: "node-1"})
	require.Nil(t, err)
	require.Nil(t, conn.WriteMessage(websocket.BinaryMessage, data))

	_, raw, err = conn.ReadMessage()
	require.Nil(t, err)
	rep, err = exchange.DecodeReply(raw)
	require.Nil(t, err)
	assert.Equal(t, exchange.StatusOK, rep.Status)
}
