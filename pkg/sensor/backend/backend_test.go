package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-kinect/pkg/sensor/mock"
	"github.com/teslashibe/go-kinect/pkg/sensor/remote"
	"github.com/teslashibe/go-kinect/pkg/sensor/webcam"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    Backend
		wantErr bool
	}{
		{"mock", BackendMock, false},
		{" Webcam ", BackendWebcam, false},
		{"REMOTE", BackendRemote, false},
		{"", BackendAuto, false},
		{"kinect", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBackend(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRemote
	assert.Error(t, cfg.Validate(), "remote needs a url")
	cfg.RemoteURL = "ws://upstream:8080/ws/bodies"
	assert.NoError(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Backend = BackendWebcam
	cfg.Webcam.Width = 1
	assert.ErrorContains(t, cfg.Validate(), "width")

	cfg = DefaultConfig()
	cfg.Backend = "kinect"
	assert.Error(t, cfg.Validate())
}

func TestNewMock(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.Mock = mock.SmallConfig()

	dev, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "mock", dev.Name())
	assert.IsType(t, &mock.Device{}, dev)

	require.NoError(t, dev.Open(context.Background()))
	require.NoError(t, dev.Close())
}

func TestNewRemote(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendRemote
	cfg.RemoteURL = "ws://127.0.0.1:1/ws/bodies"

	dev, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &remote.Device{}, dev)
	assert.Equal(t, "remote", dev.Name())
}

func TestNewWebcam(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendWebcam

	dev, err := New(cfg, quietLogger())
	if !webcam.Compiled {
		assert.ErrorIs(t, err, webcam.ErrNotCompiled)
		return
	}
	require.NoError(t, err)
	assert.Equal(t, "webcam", dev.Name())
}

func TestAutoWithoutCamera(t *testing.T) {
	if webcam.Compiled {
		t.Skip("auto selection depends on attached cameras")
	}
	cfg := DefaultConfig()
	cfg.Mock = mock.SmallConfig()

	dev, err := New(cfg, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "mock", dev.Name())

	assert.NotContains(t, AvailableBackends(), BackendWebcam)
	assert.Contains(t, AvailableBackends(), BackendRemote)
}
