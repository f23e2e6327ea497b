package session

import (
	"testing"

	"github.com/soundsride/soundsrided/internal/audio"
	"github.com/soundsride/soundsrided/internal/config"
	"github.com/soundsride/soundsrided/internal/logging"
	"github.com/soundsride/soundsrided/internal/vehicle"
	"github.com/soundsride/soundsrided/internal/workerpool"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	format := audio.Format{SampleRate: 1000, Channels: 1, BitDepth: 16}
	lib := testLibrary(format)
	atomic := config.NewAtomic(config.Defaults())
	pool := workerpool.New(3, 8)
	t.Cleanup(pool.Close)

	return NewRegistry(lib, atomic, pool, t.TempDir(), vehicle.Unconfigured{}, logging.New())
}

func TestRegistryStartAllocatesIncreasingIDs(t *testing.T) {
	reg := testRegistry(t)

	a := reg.Start()
	b := reg.Start()
	if b.ID != a.ID+1 {
		t.Errorf("ids = %d, %d, want monotonically increasing", a.ID, b.ID)
	}
}

func TestRegistryGetUnknownID(t *testing.T) {
	reg := testRegistry(t)

	if _, ok := reg.Get(99); ok {
		t.Fatal("expected Get of an unallocated id to fail")
	}
}

func TestRegistryGetReturnsStartedSession(t *testing.T) {
	reg := testRegistry(t)

	sess := reg.Start()
	got, ok := reg.Get(sess.ID)
	if !ok || got != sess {
		t.Fatal("expected Get to return the session Start allocated")
	}
}
