package engine

import (
	iface "YoloDetServer/interface"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStats(t *testing.T) {
	s := NewStats(4)
	assert.Equal(t, StatsSnapshot{}, s.Snapshot())

	s.Add(10)
	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Frames)
	assert.Equal(t, 10.0, snap.MeanMs)
	assert.Equal(t, 0.0, snap.StdDevMs)
	assert.Equal(t, 100.0, snap.MeanFPS)

	for _, v := range []float64{20, 30, 40, 50} {
		s.Add(v)
	}
	// 10 has rolled out of the window
	snap = s.Snapshot()
	assert.Equal(t, uint64(5), snap.Frames)
	assert.InDelta(t, 35.0, snap.MeanMs, 1e-9)
	assert.Equal(t, 50.0, snap.P95Ms)
	assert.Greater(t, snap.StdDevMs, 0.0)
}

func TestReadLinesReadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(p, []byte("cat\r\n\r\ndog\n bird \n"), 0o644))

	lines, err := ReadLinesReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog", "bird"}, lines)

	_, err = ReadLinesReadFile(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestResolveNames(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "names.txt")
	require.NoError(t, os.WriteFile(file, []byte("a\nb\n"), 0o644))
	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	names, err := resolveNames(iface.NamesConf{IsFile: true, Data: file})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	_, err = resolveNames(iface.NamesConf{IsFile: true, Data: empty})
	assert.Error(t, err)

	names, err = resolveNames(iface.NamesConf{Data: []string{}})
	require.NoError(t, err)
	assert.Len(t, names, 80)

	_, err = resolveNames(iface.NamesConf{Data: 42})
	assert.Error(t, err)
	_, err = resolveNames(iface.NamesConf{Data: []any{"a", 1}})
	assert.Error(t, err)

	// CocoLabels hands out copies
	names[0] = "changed"
	assert.Equal(t, "person", CocoLabels()[0])
}

func TestStateName(t *testing.T) {
	assert.Equal(t, "idle", StateName(IDLE))
	assert.Equal(t, "busy", StateName(BUSY))
	assert.Equal(t, "unregistered", StateName(UNREGISTERED))
	assert.Equal(t, "registered", StateName(REGISTERED))
	assert.Equal(t, "unknown", StateName(0))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	b1, b2 := &fakeBackend{output: scenarioOutput()}, &fakeBackend{}
	d1 := newLoaded(t, testConfig(false), b1, nil)
	d2 := newLoaded(t, testConfig(false), b2, nil)

	id1 := r.Add(d1)
	id2 := r.Add(d2)
	_, err := uuid.Parse(id1)
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, id1, d1.ID)
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get(id1)
	require.True(t, ok)
	assert.Same(t, d1, got)

	info, ok := r.Info(id2)
	require.True(t, ok)
	assert.Equal(t, "idle", info.State)
	assert.Equal(t, "fake.onnx", info.ModelPath)
	assert.Equal(t, []string{"person", "car"}, info.Labels)

	list := r.List()
	require.Len(t, list, 2)
	assert.Less(t, list[0].ID, list[1].ID)

	removed, err := r.Remove(id1)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.True(t, b1.closed.Load())
	removed, err = r.Remove(id1)
	require.NoError(t, err)
	assert.False(t, removed)

	r.DestroyAll()
	assert.Equal(t, 0, r.Len())
	assert.True(t, b2.closed.Load())
	_, ok = r.Get(id2)
	assert.False(t, ok)
}

func TestPlatform(t *testing.T) {
	p, err := getPlatform("linux", "amd64")
	require.NoError(t, err)
	assert.Equal(t, "linux-x64", p)
	p, err = getPlatform("windows", "386")
	require.NoError(t, err)
	assert.Equal(t, "windows-x86", p)

	_, err = getPlatform("plan9", "amd64")
	assert.Error(t, err)
	_, err = getPlatform("linux", "mips")
	assert.Error(t, err)

	assert.Equal(t, "onnxruntime.dll", sharedLibName("windows"))
	assert.Equal(t, "libonnxruntime.so", sharedLibName("linux"))
}

func TestFindSharedLibrary(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "libonnxruntime.so.1.20.0")
	require.NoError(t, os.WriteFile(lib, []byte("elf"), 0o644))

	got, err := FindSharedLibrary(lib)
	require.NoError(t, err)
	assert.Equal(t, lib, got)

	_, err = FindSharedLibrary(filepath.Join(dir, "nope.so"))
	assert.Error(t, err)

	dirs := libCandidates("/opt/app", "", "linux-x64")
	assert.Equal(t, []string{"/opt/app", "/opt/app/src", "/opt/app/src/linux-x64", "/opt/app/.dist/src"}, dirs)

	assert.Equal(t, lib, globFirst(dir, "libonnxruntime.so.*"))
	assert.Equal(t, "", globFirst("", "*"))
}
