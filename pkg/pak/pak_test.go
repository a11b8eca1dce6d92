package pak

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizes(t *testing.T) {
	for _, test := range []struct {
		obj  interface{}
		want int
	}{
		{fileHeader{}, 12},
		{fileEntry{}, 64},
	} {
		typ := reflect.TypeOf(test.obj)
		got := typ.Size()
		if int(got) != test.want {
			t.Errorf("Size of %q: got %v, want %v", typ.Name(), got, test.want)
		}
	}
}

func writePak(t *testing.T, dir, name string, files map[string][]byte) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, files))
	fn := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0644))
	return fn
}

func TestOpen(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, map[string][]byte{
		"maps/e1m1.bsp":   []byte("hello"),
		"gfx/palette.lmp": []byte("world!"),
	}))
	p, err := Open(nopCloser{bytes.NewReader(buf.Bytes())})
	require.NoError(t, err)
	assert.Equal(t, []string{"gfx/palette.lmp", "maps/e1m1.bsp"}, p.List())

	r, err := p.Get("maps/e1m1.bsp")
	require.NoError(t, err)
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	// Seeking works relative to the end of the entry, not the pak.
	pos, err := r.Seek(-2, io.SeekEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	_, err = p.Get("maps/e1m2.bsp")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOpenBadMagic(t *testing.T) {
	_, err := Open(nopCloser{bytes.NewReader([]byte("PAKCxxxxxxxxxxxx"))})
	assert.Error(t, err)
	_, err = Open(nopCloser{bytes.NewReader([]byte("PA"))})
	assert.Error(t, err)
}

func TestMultiPak(t *testing.T) {
	dir := t.TempDir()
	p0 := writePak(t, dir, "pak0.pak", map[string][]byte{
		"maps/start.bsp": []byte("old"),
		"maps/e1m1.bsp":  []byte("e1m1"),
	})
	p1 := writePak(t, dir, "pak1.pak", map[string][]byte{
		"maps/start.bsp": []byte("new"),
		"progs.dat":      []byte("x"),
	})
	m, err := MultiOpen(p0, "", p1)
	require.NoError(t, err)
	defer m.Close()

	data, err := m.ReadFile("maps/start.bsp")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	data, err = m.ReadFile("maps/e1m1.bsp")
	require.NoError(t, err)
	assert.Equal(t, "e1m1", string(data))

	assert.Equal(t, []string{"maps/e1m1.bsp", "maps/start.bsp"}, m.Maps())
	_, err = m.ReadFile("nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = MultiOpen(p0, filepath.Join(dir, "missing.pak"))
	assert.Error(t, err)
}

type nopCloser struct {
	io.ReaderAt
}

func (nopCloser) Close() error { return nil }
