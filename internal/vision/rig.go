// Package vision runs the webcam and the ONNX models on top of it.
package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	log "log/slog"
	"sync"

	"gocv.io/x/gocv"

	"eva/internal/detect"
	"eva/internal/gesture"
)

var ErrNoFrame = errors.New("camera returned no frame")

type Config struct {
	Camera    int
	HandModel string
	YoloModel string

	// HandOutputs names the landmark and presence outputs of the hand model.
	HandOutputs   [2]string
	HandInput     int
	YoloInput     int
	Confidence    float64
	NMSThreshold  float64
	PresenceScore float64
}

func DefaultConfig() Config {
	return Config{
		HandOutputs:   [2]string{"Identity", "Identity_1"},
		HandInput:     224,
		YoloInput:     640,
		Confidence:    detect.DefaultThreshold,
		NMSThreshold:  0.45,
		PresenceScore: gesture.PresenceThreshold,
	}
}

// Rig shares one camera between the hand and object loops. Each call grabs
// its own mirrored frame.
type Rig struct {
	cfg Config

	mu  sync.Mutex
	cap *gocv.VideoCapture

	handMu sync.Mutex
	hands  *gocv.Net

	yoloMu sync.Mutex
	yolo   *gocv.Net
}

func NewRig(cfg Config) *Rig {
	return &Rig{cfg: cfg}
}

// LoadModels reads both networks. A missing model disables its modality.
func (r *Rig) LoadModels() error {
	var errs []error

	if r.cfg.HandModel != "" {
		if net, err := loadNet(r.cfg.HandModel); err != nil {
			errs = append(errs, err)
		} else {
			r.hands = net
		}
	}
	if r.cfg.YoloModel != "" {
		if net, err := loadNet(r.cfg.YoloModel); err != nil {
			errs = append(errs, err)
		} else {
			r.yolo = net
		}
	}

	return errors.Join(errs...)
}

func loadNet(path string) (*gocv.Net, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("load model %s", path)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Debug("Loaded model", "path", path)
	return &net, nil
}

func (r *Rig) HasHands() bool   { return r.hands != nil }
func (r *Rig) HasObjects() bool { return r.yolo != nil }

func (r *Rig) Open() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cap != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(r.cfg.Camera)
	if err != nil {
		return fmt.Errorf("could not open camera %d: %w", r.cfg.Camera, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("could not open camera %d", r.cfg.Camera)
	}

	r.cap = vc
	log.Info("Camera opened", "device", r.cfg.Camera)
	return nil
}

func (r *Rig) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cap == nil {
		return nil
	}
	err := r.cap.Close()
	r.cap = nil
	log.Info("Camera released")
	return err
}

func (r *Rig) Opened() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cap != nil
}

// Shutdown releases the camera and both networks.
func (r *Rig) Shutdown() {
	r.Close()
	if r.hands != nil {
		r.hands.Close()
	}
	if r.yolo != nil {
		r.yolo.Close()
	}
}

func (r *Rig) frame() (gocv.Mat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cap == nil {
		return gocv.Mat{}, errors.New("camera not open")
	}

	img := gocv.NewMat()
	if ok := r.cap.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, ErrNoFrame
	}
	gocv.Flip(img, &img, 1)
	return img, nil
}

// Hands returns the hand visible in the current frame, if any.
func (r *Rig) Hands(ctx context.Context) ([]gesture.Hand, error) {
	if r.hands == nil {
		return nil, errors.New("hand model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := r.frame()
	if errors.Is(err, ErrNoFrame) {
		log.Debug("Skipping empty frame")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer img.Close()

	size := r.cfg.HandInput
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	r.handMu.Lock()
	defer r.handMu.Unlock()

	r.hands.SetInput(blob, "")
	outs := r.hands.ForwardLayers(r.cfg.HandOutputs[:])
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) < 2 {
		return nil, fmt.Errorf("hand model returned %d outputs", len(outs))
	}

	score, err := outs[1].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read presence: %w", err)
	}
	presence, err := gesture.Presence(score)
	if err != nil {
		return nil, err
	}
	if presence < r.cfg.PresenceScore {
		return nil, nil
	}

	data, err := outs[0].DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read landmarks: %w", err)
	}
	hand, err := gesture.HandFromTensor(data, float64(size))
	if err != nil {
		return nil, err
	}
	return []gesture.Hand{hand}, nil
}

// Objects runs YOLOv8 on the current frame and returns detections above
// the configured confidence after non-maximum suppression.
func (r *Rig) Objects(ctx context.Context) ([]detect.Detection, error) {
	if r.yolo == nil {
		return nil, errors.New("object model not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := r.frame()
	if errors.Is(err, ErrNoFrame) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer img.Close()

	size := r.cfg.YoloInput
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	r.yoloMu.Lock()
	r.yolo.SetInput(blob, "")
	out := r.yolo.Forward("")
	r.yoloMu.Unlock()
	defer out.Close()

	sizes := out.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected yolo output shape %v", sizes)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read yolo output: %w", err)
	}

	dets, err := detect.DecodeYOLO(detect.YOLOOutput{
		Data:    data,
		Classes: sizes[1] - 4,
		Anchors: sizes[2],
		ScaleX:  float64(img.Cols()) / float64(size),
		ScaleY:  float64(img.Rows()) / float64(size),
	}, detect.COCOLabels, r.cfg.Confidence)
	if err != nil {
		return nil, err
	}

	return detect.NMS(dets, r.cfg.NMSThreshold), nil
}
