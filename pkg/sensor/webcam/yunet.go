//go:build gocv

package webcam

import (
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"
)

// yunet wraps OpenCV's FaceDetectorYN.
type yunet struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex // Protects inference
}

func newYuNet(cfg Config) (*yunet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	// Input size is updated per frame
	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.Width, cfg.Height),
		float32(cfg.ConfidenceThresh),
		0.3,  // NMS threshold
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)
	return &yunet{detector: detector}, nil
}

// detect finds faces in a BGR image.
func (y *yunet) detect(img gocv.Mat, minScore float64) ([]Detection, error) {
	y.mu.Lock()
	defer y.mu.Unlock()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	y.detector.Detect(img, &faces)

	var dets []Detection
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		score := float64(faces.GetFloatAt(r, 14))
		if score < minScore {
			continue
		}
		d := Detection{
			X:     float64(faces.GetFloatAt(r, 0)),
			Y:     float64(faces.GetFloatAt(r, 1)),
			W:     float64(faces.GetFloatAt(r, 2)),
			H:     float64(faces.GetFloatAt(r, 3)),
			Score: score,
		}
		for i := range d.Landmarks {
			d.Landmarks[i] = [2]float64{
				float64(faces.GetFloatAt(r, 4+2*i)),
				float64(faces.GetFloatAt(r, 5+2*i)),
			}
		}
		dets = append(dets, d)
	}
	return dets, nil
}

func (y *yunet) close() {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.detector.Close()
}
