package webcam

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/teslashibe/go-kinect/internal/httpc"
)

// DefaultModelURL is the YuNet face detector published in the OpenCV zoo.
const DefaultModelURL = "https://github.com/opencv/opencv_zoo/raw/main/models/face_detection_yunet/face_detection_yunet_2023mar.onnx"

// EnsureModel downloads the face model to cfg.ModelPath unless a file is
// already there. It reports whether a download happened.
func EnsureModel(ctx context.Context, cfg Config, url string, logger *slog.Logger) (bool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ModelPath == "" {
		return false, fmt.Errorf("model path is empty")
	}
	if _, err := os.Stat(cfg.ModelPath); err == nil {
		return false, nil
	}
	if url == "" {
		url = DefaultModelURL
	}

	logger.Info("downloading face model", "url", url, "path", cfg.ModelPath)
	n, err := httpc.Download(ctx, nil, url, cfg.ModelPath)
	if err != nil {
		return false, fmt.Errorf("download face model: %w", err)
	}
	logger.Info("face model ready", "path", cfg.ModelPath, "bytes", n)
	return true, nil
}
