// Package audio builds the dialogue track: numbered voice takes are
// concatenated back to back and background music is looped, attenuated
// and faded underneath. All heavy lifting is delegated to ffmpeg, the
// package only assembles filter graphs.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Duration reports the length of an audio file in seconds via ffprobe.
func Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("audio: ffprobe %s: %v, output: %s", path, err, strings.TrimSpace(string(out)))
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(string(out)), "%f", &duration); err != nil {
		return 0, fmt.Errorf("audio: parse ffprobe output for %s: %w", path, err)
	}
	return duration, nil
}

// DialogueFiles lists the voice takes of a project in playback order.
func DialogueFiles(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("audio: read dir %s: %w", dir, err)
	}
	var paths []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".wav") {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("audio: no wav files in %s", dir)
	}
	return paths, nil
}

// MixOptions configures the background music bed. A zero value mixes no
// BGM at all.
type MixOptions struct {
	BGMPath     string
	BGMVolumeDB float64 // attenuation in dB, typically negative
	FadeIn      float64 // seconds
	FadeOut     float64 // seconds
}

// Mix concatenates the voice takes into dstPath, overlaying looped BGM
// when configured. The output length always matches the dialogue, the
// BGM is trimmed or looped to fit.
func Mix(ctx context.Context, wavFiles []string, dstPath string, opts MixOptions) error {
	if len(wavFiles) == 0 {
		return fmt.Errorf("audio: nothing to mix")
	}

	args := []string{"-y"}
	for _, p := range wavFiles {
		args = append(args, "-i", p)
	}

	total := 0.0
	if opts.BGMPath != "" {
		for _, p := range wavFiles {
			d, err := Duration(ctx, p)
			if err != nil {
				return err
			}
			total += d
		}
		args = append(args, "-stream_loop", "-1", "-i", opts.BGMPath)
	}
	filter, mapOut := mixFilter(len(wavFiles), opts, total)

	args = append(args,
		"-filter_complex", filter,
		"-map", mapOut,
		"-c:a", "pcm_s16le",
		dstPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("audio: ffmpeg mix error: %v, output: %s", err, string(out))
	}
	return nil
}

// mixFilter builds the filter_complex graph for n dialogue inputs and,
// when BGM is configured, a looped music input at index n. totalDuration
// is only consulted to place the fade out.
func mixFilter(n int, opts MixOptions, totalDuration float64) (graph, mapOut string) {
	var filter strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&filter, "[%d:a]", i)
	}
	fmt.Fprintf(&filter, "concat=n=%d:v=0:a=1[dialogue]", n)
	if opts.BGMPath == "" {
		return filter.String(), "[dialogue]"
	}

	fmt.Fprintf(&filter, ";[%d:a]volume=%fdB", n, opts.BGMVolumeDB)
	if opts.FadeIn > 0 {
		fmt.Fprintf(&filter, ",afade=t=in:st=0:d=%f", opts.FadeIn)
	}
	if opts.FadeOut > 0 {
		fmt.Fprintf(&filter, ",afade=t=out:st=%f:d=%f", totalDuration-opts.FadeOut, opts.FadeOut)
	}
	filter.WriteString("[bg];[dialogue][bg]amix=inputs=2:duration=first:dropout_transition=3[aout]")
	return filter.String(), "[aout]"
}
