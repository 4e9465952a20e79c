package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config does not validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	want := Default()
	if err := want.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Video.Width != want.Video.Width || got.Video.FPS != want.Video.FPS {
		t.Errorf("video section changed across round trip: %+v", got.Video)
	}
	if len(got.Video.Layers) != len(want.Video.Layers) {
		t.Fatalf("layer count = %d, want %d", len(got.Video.Layers), len(want.Video.Layers))
	}
	if got.Video.Layers[2].BlinkPerMinute != 3 {
		t.Errorf("character layer lost blink_per_minute: %+v", got.Video.Layers[2])
	}
	if got.Audio.BGMVolumeDB != -20 {
		t.Errorf("bgm_volume = %v, want -20", got.Audio.BGMVolumeDB)
	}
}

func TestLoadRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "zero size",
			yaml: "video: {width: 0, height: 1080, fps: 30}\ntimeline_path: t.csv\ndst_video_path: out.mp4\n",
			want: "invalid video size",
		},
		{
			name: "bad fps",
			yaml: "video: {width: 1920, height: 1080, fps: -1}\ntimeline_path: t.csv\ndst_video_path: out.mp4\n",
			want: "invalid fps",
		},
		{
			name: "unknown layer type",
			yaml: "video:\n  width: 1920\n  height: 1080\n  fps: 30\n  layers:\n    - {type: hologram, name: x}\ntimeline_path: t.csv\ndst_video_path: out.mp4\n",
			want: "unknown type",
		},
		{
			name: "duplicate layer name",
			yaml: "video:\n  width: 1920\n  height: 1080\n  fps: 30\n  layers:\n    - {type: solid, name: x}\n    - {type: solid, name: x}\ntimeline_path: t.csv\ndst_video_path: out.mp4\n",
			want: "duplicate name",
		},
		{
			name: "empty nested composition",
			yaml: "video:\n  width: 1920\n  height: 1080\n  fps: 30\n  layers:\n    - {type: composition, name: overlay}\ntimeline_path: t.csv\ndst_video_path: out.mp4\n",
			want: "no children",
		},
		{
			name: "missing timeline",
			yaml: "video: {width: 1920, height: 1080, fps: 30}\ndst_video_path: out.mp4\n",
			want: "timeline_path is required",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(c.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), c.want) {
				t.Errorf("Load() error = %v, want substring %q", err, c.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}
