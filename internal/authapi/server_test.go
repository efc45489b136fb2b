/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package authapi

import (
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-authcache/log/logtest"
)

func TestServer(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := newTestConfig()
	cfg.ShutdownTimeout = time.Second
	api := newTestAPI(t, cfg, nil)
	logs := logtest.NewRecorder()
	srv := NewServer(cfg, api.router, logs, listener)

	fatalErr := make(chan error, 1)
	go srv.Start(fatalErr)
	require.Eventually(t, func() bool { return srv.Addr() != "" }, time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"healthy":true}`, string(body))

	require.NoError(t, srv.Stop(true))
	select {
	case err = <-fatalErr:
		t.Fatalf("unexpected server error: %v", err)
	default:
	}
	_, found := logs.FindEntry("HTTP server closed")
	require.True(t, found)
}
