package alarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	fired []string
	ch    chan string
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan string, 16)}
}

func (r *recorder) callback(slotID string) {
	r.mu.Lock()
	r.fired = append(r.fired, slotID)
	r.mu.Unlock()
	r.ch <- slotID
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fired)
}

func newTestFacility(t *testing.T, cb Callback) *GocronFacility {
	t.Helper()
	f, err := NewGocronFacility(cb, nil)
	require.NoError(t, err)
	f.Start()
	t.Cleanup(func() { _ = f.Shutdown() })
	return f
}

func TestGocronFacility_Fires(t *testing.T) {
	rec := newRecorder()
	f := newTestFacility(t, rec.callback)

	require.NoError(t, f.RegisterOneShotExact(time.Now().Add(150*time.Millisecond), "reminder-14"))
	require.Contains(t, f.Pending(), "reminder-14")

	select {
	case slot := <-rec.ch:
		require.Equal(t, "reminder-14", slot)
	case <-time.After(3 * time.Second):
		t.Fatal("alarm did not fire")
	}
	require.NotContains(t, f.Pending(), "reminder-14")
}

func TestGocronFacility_Cancel(t *testing.T) {
	rec := newRecorder()
	f := newTestFacility(t, rec.callback)

	require.NoError(t, f.RegisterOneShotExact(time.Now().Add(200*time.Millisecond), "reminder-17"))
	require.NoError(t, f.Cancel("reminder-17"))
	require.Empty(t, f.Pending())

	time.Sleep(600 * time.Millisecond)
	require.Equal(t, 0, rec.count())
}

func TestGocronFacility_CancelUnarmedIsSafe(t *testing.T) {
	f := newTestFacility(t, newRecorder().callback)
	require.NoError(t, f.Cancel("reminder-20"))
}

func TestGocronFacility_ReplaceKeepsLatest(t *testing.T) {
	rec := newRecorder()
	f := newTestFacility(t, rec.callback)

	first := time.Now().Add(150 * time.Millisecond)
	second := time.Now().Add(400 * time.Millisecond)
	require.NoError(t, f.RegisterOneShotExact(first, "reminder-20"))
	require.NoError(t, f.RegisterOneShotExact(second, "reminder-20"))
	require.Equal(t, second, f.Pending()["reminder-20"])

	select {
	case <-rec.ch:
	case <-time.After(3 * time.Second):
		t.Fatal("alarm did not fire")
	}
	time.Sleep(300 * time.Millisecond)
	require.Equal(t, 1, rec.count())
}

func TestGocronFacility_RearmFromCallback(t *testing.T) {
	var f *GocronFacility
	fired := make(chan struct{}, 4)
	var once sync.Once

	f = newTestFacility(t, func(slotID string) {
		once.Do(func() {
			if err := f.RegisterOneShotExact(time.Now().Add(100*time.Millisecond), slotID); err != nil {
				t.Errorf("re-register from callback: %v", err)
			}
		})
		fired <- struct{}{}
	})

	require.NoError(t, f.RegisterOneShotExact(time.Now().Add(100*time.Millisecond), "reminder-14"))
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(3 * time.Second):
			t.Fatalf("firing %d did not happen", i+1)
		}
	}
}

func TestGocronFacility_RejectsPastInstant(t *testing.T) {
	f := newTestFacility(t, newRecorder().callback)

	err := f.RegisterOneShotExact(time.Now().Add(-time.Minute), "reminder-14")
	require.ErrorIs(t, err, ErrPastInstant)
	require.Empty(t, f.Pending())
}

func TestGocronFacility_ClosedRejects(t *testing.T) {
	f, err := NewGocronFacility(newRecorder().callback, nil)
	require.NoError(t, err)
	f.Start()
	require.NoError(t, f.Shutdown())
	require.NoError(t, f.Shutdown())

	require.ErrorIs(t, f.RegisterOneShotExact(time.Now().Add(time.Hour), "reminder-14"), ErrFacilityClosed)
	require.ErrorIs(t, f.Cancel("reminder-14"), ErrFacilityClosed)
}

func TestNewGocronFacility_RequiresCallback(t *testing.T) {
	_, err := NewGocronFacility(nil, nil)
	require.Error(t, err)
}
