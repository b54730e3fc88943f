package analysis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/clevtech/vision-backend/internal/keyframe"
	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeVideo struct {
	count int
	pos   int
}

func (v *fakeVideo) FrameCount() (int, error) { return v.count, nil }

func (v *fakeVideo) Seek(index int) error {
	v.pos = index
	return nil
}

func (v *fakeVideo) Read() (keyframe.Frame, error) {
	if v.pos >= v.count {
		return keyframe.Frame{}, errors.New("end of stream")
	}
	return keyframe.Frame{Width: 1, Height: 1, Space: keyframe.BGR, Pix: []byte{1, 2, 3}}, nil
}

func (v *fakeVideo) Close() error { return nil }

// fakeOracle reports the same detections for every frame.
type fakeOracle struct {
	detections []keyframe.RawDetection

	mu    sync.Mutex
	calls int
}

func (o *fakeOracle) ColorSpace() keyframe.ColorSpace { return keyframe.RGB }

func (o *fakeOracle) Detect(_ context.Context, _ keyframe.Frame) ([]keyframe.RawDetection, error) {
	o.mu.Lock()
	o.calls++
	o.mu.Unlock()
	return o.detections, nil
}

func (o *fakeOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

type fakeIndex struct {
	mu      sync.Mutex
	vectors map[string][]float32
	matches []Match
	err     error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: map[string][]float32{}}
}

func (f *fakeIndex) Upsert(_ context.Context, id string, vector []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.vectors[id] = vector
	return nil
}

func (f *fakeIndex) Similar(_ context.Context, _ string, limit int) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.matches) > limit {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func (f *fakeIndex) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vectors)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewStore(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return store
}

func setupHistory(t *testing.T) (*History, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewHistory(client, 0), mr
}

func personAndCar() []keyframe.RawDetection {
	return []keyframe.RawDetection{
		{Class: 0, Confidence: 0.9, Box: []float64{1, 2, 30, 40}},
		{Class: 2, Confidence: 0.6, Box: []float64{5, 5, 10, 10}},
	}
}

func openerFor(count int) Opener {
	return func(string) (keyframe.VideoResource, error) {
		return &fakeVideo{count: count}, nil
	}
}

func failingOpener(string) (keyframe.VideoResource, error) {
	return nil, errors.New("could not open video")
}

type serviceDeps struct {
	service *Service
	store   *Store
	history *History
	index   *fakeIndex
	oracle  *fakeOracle
	redis   *miniredis.Miniredis
}

func newTestService(t *testing.T, open Opener, detections []keyframe.RawDetection) serviceDeps {
	oracle := &fakeOracle{detections: detections}
	analyzer := keyframe.NewAnalyzer(oracle, keyframe.Config{Samples: 4, Workers: 2}, testLogger())
	store := setupStore(t)
	history, mr := setupHistory(t)
	index := newFakeIndex()

	return serviceDeps{
		service: NewService(analyzer, open, store, history, index, testLogger()),
		store:   store,
		history: history,
		index:   index,
		oracle:  oracle,
		redis:   mr,
	}
}
