package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-kinect/pkg/device"
	"github.com/teslashibe/go-kinect/pkg/dto"
	"github.com/teslashibe/go-kinect/pkg/sensor"
	"github.com/teslashibe/go-kinect/pkg/sensor/mock"
)

const waitFor = 2 * time.Second

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	dev *mock.Device
	p   *device.Poller
	srv *Server
}

// newFixture wires a manual-tick mock, a poller and a server together.
// The poller is initialized but not running until run is called.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev, err := mock.New(mock.SmallConfig(), quietLogger(), mock.WithManualTick())
	require.NoError(t, err)

	f := &fixture{dev: dev}
	f.p, err = device.New(dev, device.DefaultConfig(),
		device.WithLogger(quietLogger()),
		device.WithPollInterval(time.Millisecond),
		device.WithUpdateHook(func(k sensor.StreamKind) { f.srv.HandleUpdate(k) }),
	)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ColorInterval = time.Millisecond
	f.srv = NewServer(f.p, cfg, quietLogger())
	return f
}

func (f *fixture) run(t *testing.T) {
	t.Helper()
	require.NoError(t, f.p.Init(context.Background()))
	errCh := make(chan error, 1)
	go func() { errCh <- f.p.Run(context.Background()) }()
	require.Eventually(t, f.p.Running, waitFor, time.Millisecond)
	t.Cleanup(func() {
		require.NoError(t, f.p.Stop())
		require.NoError(t, <-errCh)
	})
}

func (f *fixture) tick(t *testing.T, kind sensor.StreamKind) {
	t.Helper()
	seq := f.dev.Tick()
	require.Eventually(t, func() bool {
		return f.p.LastFrame(kind).Seq >= seq
	}, waitFor, time.Millisecond)
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := f.srv.App().Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[dto.Status](t, resp)
	assert.False(t, st.Open)
	assert.False(t, st.Running)
	assert.Equal(t, "mock", st.Backend)

	f.run(t)
	f.tick(t, sensor.StreamBody)

	st = decode[dto.Status](t, f.do(t, http.MethodGet, "/api/status", nil))
	assert.True(t, st.Open)
	assert.True(t, st.Running)
	assert.True(t, st.UpdatingColor)
	assert.Contains(t, st.Streams, "body")
	assert.Contains(t, st.Streams, "depth")
	assert.Equal(t, 1, st.TrackedBodies)
	assert.Equal(t, f.dev.ID(), st.DeviceID)
}

func TestBodies(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	f.tick(t, sensor.StreamBody)

	resp := f.do(t, http.MethodGet, "/api/bodies", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	frame := decode[dto.BodyFrame](t, resp)
	assert.NotZero(t, frame.Seq)
	require.Len(t, frame.Bodies, 1)
	assert.Equal(t, mock.TrackingID(0), frame.Bodies[0].TrackingID)
	assert.Len(t, frame.Bodies[0].Joints, int(sensor.JointCount))

	body := decode[dto.Body](t, f.do(t, http.MethodGet, "/api/bodies/0", nil))
	assert.True(t, body.Tracked)

	idle := decode[dto.Body](t, f.do(t, http.MethodGet, "/api/bodies/5", nil))
	assert.False(t, idle.Tracked)
	assert.Empty(t, idle.Joints)
}

func TestBodyIndexErrors(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/api/bodies/6", "/api/bodies/-1", "/api/bodies/head", "/api/faces/9"} {
		t.Run(path, func(t *testing.T) {
			resp := f.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			got := decode[map[string]string](t, resp)
			assert.Equal(t, "invalid body index", got["error"])
		})
	}
}

func TestIntrinsics(t *testing.T) {
	f := newFixture(t)

	in := decode[dto.Intrinsics](t, f.do(t, http.MethodGet, "/api/intrinsics", nil))
	assert.False(t, in.Ready)

	f.run(t)
	f.tick(t, sensor.StreamDepth)
	require.Eventually(t, func() bool {
		return !f.p.CameraIntrinsics().IsZero()
	}, waitFor, time.Millisecond)

	in = decode[dto.Intrinsics](t, f.do(t, http.MethodGet, "/api/intrinsics", nil))
	assert.True(t, in.Ready)
	assert.NotZero(t, in.FocalLengthX)
}

func TestColorJPEG(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/color.jpg", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	f.run(t)
	f.tick(t, sensor.StreamColor)

	resp = f.do(t, http.MethodGet, "/api/color.jpg?quality=50", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))
	img, err := jpeg.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, mock.SmallConfig().ColorWidth, img.Bounds().Dx())
	assert.Equal(t, mock.SmallConfig().ColorHeight, img.Bounds().Dy())

	resp = f.do(t, http.MethodGet, "/api/color.jpg?quality=101", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInfraredPNG(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	f.tick(t, sensor.StreamInfrared)

	resp := f.do(t, http.MethodGet, "/api/infrared.png", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, mock.SmallConfig().DepthWidth, img.Bounds().Dx())
}

func TestColorUpdating(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPut, "/api/color/updating", bytes.NewBufferString(`{"enabled":false}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, f.p.IsUpdatingColor())

	got := decode[map[string]bool](t, f.do(t, http.MethodGet, "/api/color/updating", nil))
	assert.False(t, got["enabled"])

	resp = f.do(t, http.MethodPut, "/api/color/updating", bytes.NewBufferString(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = f.do(t, http.MethodPut, "/api/color/updating", bytes.NewBufferString(`not json`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, f.p.IsUpdatingColor())
}

func TestFaces(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	f.tick(t, sensor.StreamBody)
	for i := 0; i <= mock.SmallConfig().ModelFrames+1; i++ {
		f.tick(t, sensor.StreamHDFace)
	}

	face := decode[dto.Face](t, f.do(t, http.MethodGet, "/api/faces/0", nil))
	assert.True(t, face.Valid)
	assert.Equal(t, mock.TrackingID(0), face.TrackingID)
	assert.Contains(t, face.Points, "nose")
	assert.Equal(t, "yes", face.Properties["engaged"])

	mesh := decode[dto.FaceMesh](t, f.do(t, http.MethodGet, "/api/faces/0/vertices?triangles=true", nil))
	assert.Equal(t, "complete", mesh.Status)
	assert.Len(t, mesh.Vertices, mock.SmallConfig().FaceVertices)
	assert.NotEmpty(t, mesh.Triangles)

	bare := decode[dto.FaceMesh](t, f.do(t, http.MethodGet, "/api/faces/0/vertices", nil))
	assert.Empty(t, bare.Triangles)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	f.tick(t, sensor.StreamBody)

	st := decode[device.Stats](t, f.do(t, http.MethodGet, "/api/stats", nil))
	assert.True(t, st.Running)
	assert.NotZero(t, st.Cycles)
	assert.NotZero(t, st.FrameCount(sensor.StreamBody))
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/ws/bodies", nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

// serve runs the server on a loopback listener and returns its address.
func (f *fixture) serve(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
	})
	return ln.Addr().String()
}

func dial(t *testing.T, url string) *gorilla.Conn {
	t.Helper()
	var conn *gorilla.Conn
	require.Eventually(t, func() bool {
		c, _, err := gorilla.DefaultDialer.Dial(url, nil)
		if err != nil {
			return false
		}
		conn = c
		return true
	}, waitFor, 5*time.Millisecond)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBodiesWebsocket(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	addr := f.serve(t)

	conn := dial(t, "ws://"+addr+"/ws/bodies")
	bodies, _ := f.srv.Hubs()
	require.Eventually(t, func() bool { return bodies.ClientCount() == 1 }, waitFor, time.Millisecond)

	f.tick(t, sensor.StreamBody)

	conn.SetReadDeadline(time.Now().Add(waitFor))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gorilla.TextMessage, typ)

	var frame dto.BodyFrame
	require.NoError(t, json.Unmarshal(data, &frame))
	assert.Equal(t, f.dev.ID(), frame.DeviceID)
	require.Len(t, frame.Bodies, 1)

	back, err := frame.ToSensor()
	require.NoError(t, err)
	assert.True(t, back.Bodies[0].Tracked)
}

func TestColorWebsocket(t *testing.T) {
	f := newFixture(t)
	f.run(t)
	addr := f.serve(t)

	conn := dial(t, "ws://"+addr+"/ws/color")
	_, color := f.srv.Hubs()
	require.Eventually(t, func() bool { return color.ClientCount() == 1 }, waitFor, time.Millisecond)

	f.tick(t, sensor.StreamColor)

	conn.SetReadDeadline(time.Now().Add(waitFor))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, gorilla.BinaryMessage, typ)
	_, err = jpeg.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}
