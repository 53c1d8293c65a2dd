package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/richinex/firemaker/model"
)

// FrameSink accepts frames for offline inspection. Submit must not block.
type FrameSink interface {
	Submit(frame *model.Frame) bool
}

// FrameSaver writes frames to a directory on a background goroutine.
// Frames are dropped when the queue is full; write errors are logged and
// swallowed. Close drains the queue.
type FrameSaver struct {
	dir    string
	runID  string
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	closed bool
	queue  chan *model.Frame
	done   chan struct{}
	seq    int
}

// NewFrameSaver starts a saver writing into dir. buffer is the queue length.
func NewFrameSaver(dir, runID string, buffer int, logger *zap.Logger) *FrameSaver {
	if buffer <= 0 {
		buffer = 8
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FrameSaver{
		dir:    dir,
		runID:  runID,
		logger: logger.Named("frames"),
		now:    time.Now,
		queue:  make(chan *model.Frame, buffer),
		done:   make(chan struct{}),
	}
	go s.loop()
	return s
}

// Submit queues a frame. It returns false when the frame was dropped.
func (s *FrameSaver) Submit(frame *model.Frame) bool {
	if frame == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.queue <- frame:
		return true
	default:
		s.logger.Debug("debug frame queue full, dropping frame")
		return false
	}
}

// Close stops accepting frames and waits for queued frames to be written.
func (s *FrameSaver) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	<-s.done
	return nil
}

func (s *FrameSaver) loop() {
	defer close(s.done)
	dirReady := false
	for frame := range s.queue {
		if !dirReady {
			if err := os.MkdirAll(s.dir, 0755); err != nil {
				s.logger.Warn("cannot create debug frame directory", zap.String("dir", s.dir), zap.Error(err))
				continue
			}
			dirReady = true
		}
		s.seq++
		path := filepath.Join(s.dir, s.fileName(frame))
		if err := os.WriteFile(path, frame.Image, 0644); err != nil {
			s.logger.Warn("failed to save debug frame", zap.String("path", path), zap.Error(err))
			continue
		}
		s.logger.Debug("saved debug frame", zap.String("path", path))
	}
}

func (s *FrameSaver) fileName(frame *model.Frame) string {
	ts := frame.CapturedAt
	if ts.IsZero() {
		ts = s.now()
	}
	ext := "png"
	if frame.MediaType == "image/jpeg" {
		ext = "jpg"
	}
	run := s.runID
	if len(run) > 8 {
		run = run[:8]
	}
	if run == "" {
		return fmt.Sprintf("screenshot_%s_%03d.%s", ts.Format("20060102_150405"), s.seq, ext)
	}
	return fmt.Sprintf("screenshot_%s_%03d_%s.%s", ts.Format("20060102_150405"), s.seq, run, ext)
}

var _ FrameSink = (*FrameSaver)(nil)
