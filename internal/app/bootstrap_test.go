package app

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewApplicationWiresAllComponents(t *testing.T) {
	opts := NewOptions(false, "")
	opts.HTTPAddr = "127.0.0.1:0"

	application, err := NewApplication(opts)
	require.NoError(t, err)

	svc := application.Services()
	require.NotNil(t, svc.Ports)
	require.NotNil(t, svc.Bus)
	require.NotNil(t, svc.Prober)
	require.NotNil(t, svc.Registry)
	require.NotNil(t, svc.Deliverer)
	require.NotNil(t, svc.Deint)
	require.NotNil(t, svc.Router)
	require.Nil(t, svc.Scanner) // autoDiscovery.enabled defaults false
}

func TestRunServerServesUntilCanceled(t *testing.T) {
	opts := NewOptions(false, "")
	opts.HTTPAddr = "127.0.0.1:18765"

	application, err := NewApplication(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18765/integrations/")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewApplicationLoadsConfigFromPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("portRange:\n  min: 4000\n  max: 4100\n"), 0o644))

	opts := NewOptions(false, dir)
	opts.HTTPAddr = "127.0.0.1:0"

	application, err := NewApplication(opts)
	require.NoError(t, err)
	require.Equal(t, 4000, application.Services().Config.PortRange.Min)
}
