package rpc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/rpc"
)

func TestEncodeRequest(t *testing.T) {
	line, err := rpc.EncodeRequest(rpc.Request{Method: "ping", ID: 7})
	require.NoError(t, err)
	require.Equal(t, `{"jsonrpc":"2.0","method":"ping","params":{},"id":7}`+"\n", string(line))

	_, err = rpc.EncodeRequest(rpc.Request{Method: "bad", Params: func() {}, ID: 8})
	require.ErrorContains(t, err, "encode bad request")
}

func TestDecodeResponse(t *testing.T) {
	t.Run("result", func(t *testing.T) {
		resp, err := rpc.DecodeResponse([]byte(`{"jsonrpc":"2.0","result":{"status":"pong"},"id":1}`))
		require.NoError(t, err)
		require.True(t, resp.HasID)
		require.Equal(t, uint64(1), resp.ID)
		require.Nil(t, resp.Error)
		require.JSONEq(t, `{"status":"pong"}`, string(resp.Result))
	})

	t.Run("error with structured data", func(t *testing.T) {
		resp, err := rpc.DecodeResponse([]byte(`{"jsonrpc":"2.0","error":{"code":-32602,"message":"Invalid params","data":{"field":"project_id"}},"id":4}`))
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		require.Equal(t, -32602, resp.Error.Code)
		require.JSONEq(t, `{"field":"project_id"}`, resp.Error.DataString())
	})

	t.Run("null id on error is unattributed", func(t *testing.T) {
		resp, err := rpc.DecodeResponse([]byte(`{"jsonrpc":"2.0","error":{"code":-32603,"message":"Internal error"},"id":null}`))
		require.NoError(t, err)
		require.False(t, resp.HasID)
		require.Empty(t, resp.Error.DataString())
	})

	invalid := map[string]string{
		"not json":         `hello`,
		"wrong version":    `{"jsonrpc":"1.0","result":1,"id":1}`,
		"missing id":       `{"jsonrpc":"2.0","result":1}`,
		"string id":        `{"jsonrpc":"2.0","result":1,"id":"1"}`,
		"negative id":      `{"jsonrpc":"2.0","result":1,"id":-1}`,
		"result and error": `{"jsonrpc":"2.0","result":1,"error":{"code":1,"message":"x"},"id":1}`,
		"fractional id":    `{"jsonrpc":"2.0","result":1,"id":1.5}`,
		"array body":       `[1,2,3]`,
	}
	for name, line := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := rpc.DecodeResponse([]byte(line))
			require.Error(t, err)
		})
	}
}
