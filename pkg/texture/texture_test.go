package texture

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"github.com/ThomasHabets/bspimport/pkg/bsp"
	"github.com/ThomasHabets/bspimport/pkg/bsp/bsptest"
	"github.com/ThomasHabets/bspimport/pkg/palette"
)

func TestSanitize(t *testing.T) {
	for _, test := range []struct {
		in      string
		dialect bsp.Dialect
		want    string
	}{
		{"WALL1\x00\x00", bsp.Quake, "wall1"},
		{`E1U1\Floor1_3`, bsp.Quake2, "e1u1/floor1_3"},
		{"e1u1//wall", bsp.Quake2, "e1u1/wall"},
		{"/dev/placeholder/", bsp.Quake, "dev/placeholder"},
		{"textures/base_wall/concrete", bsp.Quake3, "base_wall/concrete"},
		{"textures/textures//x", bsp.Quake3, "x"},
		{"textures/x", bsp.Quake, "textures/x"},
		{"  Tools/ToolsClip ", bsp.HalfLife, "tools/toolsclip"},
		{"*water0", bsp.Quake, "*water0"},
		{"", bsp.Quake, ""},
	} {
		got := Sanitize(test.in, test.dialect)
		assert.Equal(t, test.want, got, "Sanitize(%q, %v)", test.in, test.dialect)
		assert.Equal(t, got, Sanitize(got, test.dialect), "not idempotent for %q", test.in)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	for _, in := range []string{
		"textures/ textures/a",
		"/\\/ x \x00",
		"TEXTURES\\TEXTURES\\Y",
		"a/\x00/b",
	} {
		for _, d := range []bsp.Dialect{bsp.Quake, bsp.HalfLife, bsp.Quake2, bsp.Quake3} {
			once := Sanitize(in, d)
			assert.Equal(t, once, Sanitize(once, d), "%q %v", in, d)
		}
	}
}

func TestIsTool(t *testing.T) {
	for _, test := range []struct {
		name    string
		flags   uint32
		dialect bsp.Dialect
		want    bool
	}{
		{"tools/toolsclip", 0, bsp.HalfLife, true},
		{"TOOLS/ToolsNoDraw", 0, bsp.Quake3, true},
		{"trigger", 0, bsp.Quake, true},
		{"aaatrigger", 0, bsp.HalfLife, true},
		{"textures/common/caulk", 0, bsp.Quake3, true},
		{"e1u1/floor", SurfNoDraw, bsp.Quake2, true},
		{"e1u1/floor", SurfSkip, bsp.Quake2, true},
		{"e1u1/floor", 0x1, bsp.Quake2, false},
		{"nature/grass01", SurfNoDraw, bsp.Source, true},
		{"nature/grass01", 0, bsp.Source, false},
		{"TOOLS/TOOLSSKYBOX", 0, bsp.Source, true},
		{"wall", SurfNoDraw, bsp.Quake, false},
		{"dev/placeholder", 0, bsp.Quake, false},
		{"mytools/wall", 0, bsp.Quake, false},
	} {
		assert.Equal(t, test.want, IsTool(test.name, test.flags, test.dialect), "%q %x %v", test.name, test.flags, test.dialect)
	}
}

func loadMap(t *testing.T, m *bsptest.Map) *bsp.BSP {
	t.Helper()
	b, err := bsp.LoadBytes(m.Encode())
	require.NoError(t, err)
	return b
}

func TestResolveEmbedded(t *testing.T) {
	rgb := make([]byte, 768)
	for n := 0; n < 256; n++ {
		rgb[n*3] = byte(n)
		rgb[n*3+1] = 7
	}
	pal, err := palette.FromRGB(rgb)
	require.NoError(t, err)

	b := loadMap(t, bsptest.Quad(bsp.Quake, 64, "WALL", 8, 4))
	r := NewResolver(b, pal, nil, nil)
	a, err := r.Resolve(0)
	require.NoError(t, err)
	assert.Equal(t, "wall", a.Name)
	assert.False(t, a.Placeholder)
	assert.Equal(t, "embedded", a.Origin)
	assert.Equal(t, 8, a.Width)
	assert.Equal(t, 4, a.Height)
	assert.Equal(t, image.Rect(0, 0, 8, 4), a.Image.Bounds())
	// Pixel n is palette index n, row major from the top.
	assert.Equal(t, color.RGBA{R: 9, G: 7, A: 255}, color.RGBAModel.Convert(a.Image.At(1, 1)))

	again, err := r.Resolve(0)
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Len(t, r.Assets(), 1)

	_, err = r.Resolve(1)
	assert.Error(t, err)
}

func TestResolveOwnPalette(t *testing.T) {
	b := loadMap(t, bsptest.Quad(bsp.HalfLife, 64, "wall", 8, 8))
	r := NewResolver(b, palette.Gray(), nil, nil)
	a, err := r.Resolve(0)
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 3, G: 0, B: 252, A: 255}, color.RGBAModel.Convert(a.Image.At(3, 0)))
}

func TestResolvePlaceholder(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	b := loadMap(t, bsptest.Quad(bsp.Quake2, 64, "e1u1/floor", 0, 0))
	r := NewResolver(b, nil, nil, logger)
	a, err := r.Resolve(0)
	require.NoError(t, err)
	assert.True(t, a.Placeholder)
	assert.NotEmpty(t, a.Degraded)
	assert.Equal(t, image.Rect(0, 0, 1, 1), a.Image.Bounds())
	assert.Equal(t, DefaultSize, a.Width)
	assert.Equal(t, DefaultSize, a.Height)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, "e1u1/floor", hook.LastEntry().Data["texture"])

	// Cached: no second warning.
	_, err = r.Resolve(0)
	require.NoError(t, err)
	assert.Len(t, hook.AllEntries(), 1)
}

func writePNG(t *testing.T, fn string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(fn), 0o755))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	require.NoError(t, os.WriteFile(fn, buf.Bytes(), 0o644))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "e1u1", "floor.png"), 32, 16)
	writePNG(t, filepath.Join(dir, "textures", "base_wall", "concrete.png"), 4, 4)

	// BMP is found too.
	{
		img := image.NewRGBA(image.Rect(0, 0, 2, 3))
		draw.Draw(img, img.Bounds(), image.Opaque, image.Point{}, draw.Src)
		var buf bytes.Buffer
		require.NoError(t, bmp.Encode(&buf, img))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "halflife.bmp"), buf.Bytes(), 0o644))
	}

	// Uncompressed true colour TGA, top-left origin.
	{
		hdr := []byte{0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 1, 0, 24, 0x20}
		px := []byte{0, 0, 255, 0, 255, 0}
		require.NoError(t, os.WriteFile(filepath.Join(dir, "red.tga"), append(hdr, px...), 0o644))
	}

	src := DirSource{Dirs: []string{filepath.Join(dir, "missing"), dir}}
	for _, test := range []struct {
		name string
		w, h int
	}{
		{"e1u1/floor", 32, 16},
		{"base_wall/concrete", 4, 4},
		{"halflife", 2, 3},
		{"red", 2, 1},
	} {
		img, fn, err := src.Find(test.name)
		require.NoError(t, err, test.name)
		assert.NotEmpty(t, fn)
		assert.Equal(t, image.Rect(0, 0, test.w, test.h), img.Bounds(), test.name)
	}

	img, _, err := src.Find("red")
	require.NoError(t, err)
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0, 0}, []uint32{r, g, b})

	_, _, err = src.Find("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveExternal(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "e1u1", "floor.png"), 32, 16)
	b := loadMap(t, bsptest.Quad(bsp.Quake2, 64, "E1U1/Floor", 0, 0))
	r := NewResolver(b, nil, DirSource{Dirs: []string{dir}}, nil)
	a, err := r.Resolve(0)
	require.NoError(t, err)
	assert.False(t, a.Placeholder)
	assert.Equal(t, filepath.Join(dir, "e1u1", "floor.png"), a.Origin)
	assert.Equal(t, 32, a.Width)
	assert.Equal(t, 16, a.Height)
}
