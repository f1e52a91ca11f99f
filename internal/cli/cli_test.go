package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matzehuels/overlay/pkg/catalog"
	"github.com/matzehuels/overlay/pkg/errors"
)

func pngDataURI(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{30, 60, 90, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	c := New(io.Discard, LogInfo)
	root := c.RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	want := map[string]bool{"render": false, "serve": false, "cache": false, "catalog": false, "completion": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if root.PersistentFlags().Lookup("config") == nil {
		t.Error("missing --config flag")
	}
}

func TestRenderFromFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "[cache]\nbackend = \"none\"\n")
	out := filepath.Join(dir, "nested", "out.jpg")

	_, err := execute(t, "render", "--config", cfg,
		"-b", pngDataURI(t, 40, 20),
		"--text", "[center]Hello",
		"--text-x", "50",
		"--width", "20",
		"-o", out)
	if err != nil {
		t.Fatalf("render error: %v", err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	cfgImg, format, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" || cfgImg.Width != 20 || cfgImg.Height != 10 {
		t.Errorf("output = %s %dx%d, want jpeg 20x10", format, cfgImg.Width, cfgImg.Height)
	}
}

func TestRenderFromRequestFile(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "[cache]\nbackend = \"none\"\n")

	logo := filepath.Join(dir, "logo.png")
	if err := os.WriteFile(logo, mustDecodeDataURI(t, pngDataURI(t, 4, 4)), 0o644); err != nil {
		t.Fatal(err)
	}
	reqPath := filepath.Join(dir, "request.yaml")
	req := "background: " + pngDataURI(t, 30, 30) + "\n" +
		"canvas:\n  width: 60\n" +
		"overlays:\n" +
		"  - kind: image\n    image:\n      source: " + logo + "\n      width: 25\n      x: 5\n      y: 5\n"
	if err := os.WriteFile(reqPath, []byte(req), 0o644); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(dir, "out.jpg")
	// --height overrides the file and forces a 60x30 canvas.
	if _, err := execute(t, "render", reqPath, "--config", cfg, "--height", "30", "-o", out); err != nil {
		t.Fatalf("render error: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 60 || img.Height != 30 {
		t.Errorf("output = %dx%d, want 60x30", img.Width, img.Height)
	}
}

func mustDecodeDataURI(t *testing.T, uri string) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, "data:image/png;base64,"))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestRenderToStdout(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "[cache]\nbackend = \"none\"\n")

	out, err := execute(t, "render", "--config", cfg, "-b", pngDataURI(t, 8, 8), "-o", "-")
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if _, format, err := image.DecodeConfig(strings.NewReader(out)); err != nil || format != "jpeg" {
		t.Errorf("stdout is not a jpeg: %v (%s)", err, format)
	}
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir, "[cache]\nbackend = \"none\"\n")

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"no background", []string{"render", "--config", cfg}, errors.ErrCodeInvalidInput},
		{"missing request file", []string{"render", "--config", cfg, filepath.Join(dir, "none.yaml")}, errors.ErrCodeInvalidPath},
		{"bad fit", []string{"render", "--config", cfg, "-b", pngDataURI(t, 4, 4), "--fit", "tile"}, errors.ErrCodeInvalidInput},
		{"bad image placement", []string{"render", "--config", cfg, "-b", "x", "--image", "logo.png@a,b"}, errors.ErrCodeInvalidInput},
		{"missing config", []string{"render", "--config", filepath.Join(dir, "missing.toml"), "-b", "x"}, errors.ErrCodeInvalidPath},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestPrintMarkup(t *testing.T) {
	out, err := execute(t, "render", "-b", "unused", "--text", "[center]E=mc^{2}\nsecond", "--print-markup")
	if err != nil {
		t.Fatalf("render --print-markup error: %v", err)
	}
	if out != "[center]E=mc^{2}\nsecond\n# plain: E=mc2 / second\n" {
		t.Errorf("output = %q", out)
	}

	out, err = execute(t, "render", "-b", "unused", "--text", "H^{2}O", "--align", "right", "--print-markup")
	if err != nil {
		t.Fatalf("render --align error: %v", err)
	}
	if out != "[right]H^{2}O\n# plain: H2O\n" {
		t.Errorf("aligned output = %q", out)
	}

	if _, err := execute(t, "render", "-b", "unused", "--text", "x", "--align", "middle", "--print-markup"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("invalid --align error = %v, want INVALID_INPUT", err)
	}

	out, err = execute(t, "render", "-b", "unused", "--text", "x^{2", "--print-markup")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "\n# ") {
		t.Errorf("expected a diagnostic line, got %q", out)
	}
}

func TestParseImageFlag(t *testing.T) {
	tests := []struct {
		in          string
		source      string
		x, y, width float64
		wantErr     bool
	}{
		{in: "logo.png", source: "logo.png", width: defaultImageW},
		{in: "logo.png@10,20", source: "logo.png", x: 10, y: 20, width: defaultImageW},
		{in: "preset:acme@5,5,15", source: "preset:acme", x: 5, y: 5, width: 15},
		{in: "https://u@host/a.png@1,2", source: "https://u@host/a.png", x: 1, y: 2, width: defaultImageW},
		{in: "https://u@host/a.png", source: "https://u@host/a.png", width: defaultImageW},
		{in: "a.png@x,2", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			o, err := parseImageFlag(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if o.Source != tt.source || o.X != tt.x || o.Y != tt.y || o.WidthPercent != tt.width {
				t.Errorf("parseImageFlag(%q) = %+v", tt.in, o)
			}
		})
	}
}

func TestCachePath(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfg := writeConfig(t, dir, "[cache]\ndir = \""+cacheDir+"\"\n")

	out, err := execute(t, "cache", "path", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != cacheDir {
		t.Errorf("cache path = %q, want %q", out, cacheDir)
	}

	none := writeConfig(t, t.TempDir(), "[cache]\nbackend = \"none\"\n")
	if _, err := execute(t, "cache", "path", "--config", none); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("cache path with no backend: %v", err)
	}
}

func TestCacheClear(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfg := writeConfig(t, dir, "[cache]\ndir = \""+cacheDir+"\"\n")

	// Populate the cache with one render.
	if _, err := execute(t, "render", "--config", cfg, "-b", pngDataURI(t, 8, 8), "-o", filepath.Join(dir, "a.jpg")); err != nil {
		t.Fatal(err)
	}
	entries, _ := filepath.Glob(filepath.Join(cacheDir, "*", "*.json"))
	if len(entries) == 0 {
		t.Fatal("render did not populate the cache")
	}

	if _, err := execute(t, "cache", "clear", "--config", cfg); err != nil {
		t.Fatal(err)
	}
	entries, _ = filepath.Glob(filepath.Join(cacheDir, "*", "*.json"))
	if len(entries) != 0 {
		t.Errorf("%d entries left after clear", len(entries))
	}
}

func TestCatalogList(t *testing.T) {
	dir := t.TempDir()
	presets := filepath.Join(dir, "presets.toml")
	data := "[[preset]]\nid = \"acme\"\nname = \"ACME\"\nsource = \"https://cdn.example.com/acme.png\"\ntags = [\"sponsor\"]\n\n" +
		"[[preset]]\nid = \"beta\"\nsource = \"https://cdn.example.com/beta.png\"\n"
	if err := os.WriteFile(presets, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := writeConfig(t, dir, "[catalog]\nfile = \""+presets+"\"\n")

	out, err := execute(t, "catalog", "list", "--config", cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "acme") || !strings.Contains(out, "beta") {
		t.Errorf("list output = %q", out)
	}

	out, err = execute(t, "catalog", "list", "--config", cfg, "--tag", "SPONSOR")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "acme") || strings.Contains(out, "beta") {
		t.Errorf("filtered output = %q", out)
	}

	empty := writeConfig(t, t.TempDir(), "")
	if _, err := execute(t, "catalog", "list", "--config", empty); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("no catalog: %v, want NOT_FOUND", err)
	}
}

func TestPresetListModel(t *testing.T) {
	entries := []catalog.Entry{{ID: "a", Source: "x"}, {ID: "b", Source: "y"}, {ID: "c", Source: "z"}}
	m := NewPresetListModel(entries)
	m.Height = 2

	key := func(s string) tea.KeyMsg {
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
	next, _ := m.Update(key("j"))
	next, _ = next.Update(key("j"))
	m = next.(PresetListModel)
	if m.Cursor != 2 || m.Offset != 1 {
		t.Errorf("cursor/offset = %d/%d, want 2/1", m.Cursor, m.Offset)
	}
	if view := m.View(); !strings.Contains(view, "[3/3]") {
		t.Errorf("view missing position:\n%s", view)
	}

	next, _ = m.Update(key("k"))
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(PresetListModel)
	if m.Selected == nil || m.Selected.ID != "b" {
		t.Errorf("selected = %+v, want b", m.Selected)
	}
	if cmd == nil {
		t.Error("enter should quit")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdef", 4); got != "abc…" {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Errorf("truncate = %q", got)
	}
}
