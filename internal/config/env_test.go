package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	t.Setenv("KINECT_BACKEND", "")
	t.Setenv("PORT", "")
	t.Setenv("KINECT_REMOTE_URL", "")
	t.Setenv("LOG_LEVEL", "")

	assert.Equal(t, "mock", SensorBackend("mock"))
	assert.Equal(t, DefaultHTTPPort, HTTPPort())
	assert.Equal(t, "", RemoteURL(""))
	assert.Equal(t, DefaultLogLevel, LogLevel())
	assert.Equal(t, ":8080", HTTPAddr(HTTPPort()))
}

func TestOverrides(t *testing.T) {
	t.Setenv("KINECT_BACKEND", "remote")
	t.Setenv("PORT", "9090")
	t.Setenv("KINECT_REMOTE_URL", "ws://upstream:8080/ws/bodies")
	t.Setenv("LOG_LEVEL", "debug")

	assert.Equal(t, "remote", SensorBackend("auto"))
	assert.Equal(t, "9090", HTTPPort())
	assert.Equal(t, "ws://upstream:8080/ws/bodies", RemoteURL(""))
	assert.Equal(t, "debug", LogLevel())
}

func TestDuration(t *testing.T) {
	t.Setenv("KINECT_POLL", "50ms")
	assert.Equal(t, 50*time.Millisecond, Duration("KINECT_POLL", time.Second))

	t.Setenv("KINECT_POLL", "soon")
	assert.Equal(t, time.Second, Duration("KINECT_POLL", time.Second))

	t.Setenv("KINECT_POLL", "-1s")
	assert.Equal(t, time.Second, Duration("KINECT_POLL", time.Second))
}

func TestBool(t *testing.T) {
	t.Setenv("KINECT_NO_COLOR", "1")
	assert.True(t, Bool("KINECT_NO_COLOR", false))

	t.Setenv("KINECT_NO_COLOR", "nah")
	assert.False(t, Bool("KINECT_NO_COLOR", false))
}
