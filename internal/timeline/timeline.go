// Package timeline reads and writes the dialogue timeline, the CSV file
// that drives the whole video: one row per spoken line, with the slide
// flips, character statuses and actions attached to it.
package timeline

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var ErrEmptyDialogue = errors.New("timeline: empty dialogue text")

// Entry is one row of the timeline CSV.
type Entry struct {
	Start     float64
	End       float64
	Character string
	// Hash identifies the source text so hand edits to the CSV survive
	// regeneration.
	Hash   string
	Text   string
	Slide  int
	Status string
	Action string
}

func (e Entry) Duration() float64 { return e.End - e.Start }

var csvHeader = []string{"start_time", "end_time", "character", "hash", "text", "slide", "status", "action"}

// HashPrefix returns the short content hash used to match regenerated
// rows against a previously edited timeline.
func HashPrefix(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:6]
}

// Read parses a timeline CSV.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("timeline: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	col := map[string]int{}
	for i, name := range records[0] {
		col[strings.TrimSpace(name)] = i
	}
	for _, name := range csvHeader[:7] {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("timeline: missing column %q", name)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	entries := make([]Entry, 0, len(records)-1)
	for n, rec := range records[1:] {
		start, err := strconv.ParseFloat(get(rec, "start_time"), 64)
		if err != nil {
			return nil, fmt.Errorf("timeline: row %d: bad start_time: %w", n+1, err)
		}
		end, err := strconv.ParseFloat(get(rec, "end_time"), 64)
		if err != nil {
			return nil, fmt.Errorf("timeline: row %d: bad end_time: %w", n+1, err)
		}
		slide := 0
		if s := get(rec, "slide"); s != "" {
			slide, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("timeline: row %d: bad slide: %w", n+1, err)
			}
		}
		entries = append(entries, Entry{
			Start:     start,
			End:       end,
			Character: get(rec, "character"),
			Hash:      get(rec, "hash"),
			Text:      get(rec, "text"),
			Slide:     slide,
			Status:    get(rec, "status"),
			Action:    get(rec, "action"),
		})
	}
	return entries, nil
}

// Write renders entries as a timeline CSV.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("timeline: write csv: %w", err)
	}
	for _, e := range entries {
		rec := []string{
			strconv.FormatFloat(e.Start, 'g', -1, 64),
			strconv.FormatFloat(e.End, 'g', -1, 64),
			e.Character,
			e.Hash,
			e.Text,
			strconv.Itoa(e.Slide),
			e.Status,
			e.Action,
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("timeline: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("timeline: write csv: %w", err)
	}
	return nil
}

// ReadFile loads a timeline CSV from disk.
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("timeline: open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f)
}

// WriteFile saves entries to path, creating or truncating it.
func WriteFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("timeline: create %s: %w", path, err)
	}
	defer f.Close()
	if err := Write(f, entries); err != nil {
		return err
	}
	return f.Close()
}

// Duration returns the end time of the last entry.
func Duration(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].End
}

// WrapText breaks text into display lines of at most maxRunes runes,
// joined with a literal \n as ASS dialogue expects. Breaks land on
// spaces when there is one in reach, otherwise mid-word, which also
// covers scripts written without spaces.
func WrapText(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	text = strings.TrimSpace(text)
	var lines []string
	var line []rune
	lastSpace := -1
	for _, r := range text {
		if r == '\n' {
			r = ' '
		}
		if r == ' ' {
			lastSpace = len(line)
		}
		line = append(line, r)
		if len(line) >= maxRunes {
			if lastSpace > 0 {
				lines = append(lines, strings.TrimSpace(string(line[:lastSpace])))
				line = []rune(strings.TrimLeft(string(line[lastSpace:]), " "))
			} else {
				lines = append(lines, string(line))
				line = nil
			}
			lastSpace = -1
		}
	}
	if rest := strings.TrimSpace(string(line)); rest != "" {
		lines = append(lines, rest)
	}
	return strings.Join(lines, `\n`)
}

// GenerateOptions controls timeline regeneration.
type GenerateOptions struct {
	// MaxLineRunes wraps dialogue text for display. Zero disables
	// wrapping.
	MaxLineRunes int
	// Previous holds an earlier timeline whose hand-edited rows are
	// carried over when the source text has not changed.
	Previous []Entry
}

// AudioProber reports the duration in seconds of an audio file.
type AudioProber func(path string) (float64, error)

// Generate builds a timeline from a directory of numbered dialogue
// takes: NNN_character.wav holds the speech, NNN_character.txt the
// text. Rows follow each other back to back, so the Nth row starts
// where row N-1 ended. Rows whose text hash matches a previous entry
// keep that entry's text, slide, status and action edits.
func Generate(audioDir string, probe AudioProber, opts GenerateOptions) ([]Entry, error) {
	wavs, err := sortedFiles(audioDir, ".wav")
	if err != nil {
		return nil, err
	}
	txts, err := sortedFiles(audioDir, ".txt")
	if err != nil {
		return nil, err
	}
	if len(wavs) != len(txts) {
		return nil, fmt.Errorf("timeline: %d wav files but %d txt files in %s", len(wavs), len(txts), audioDir)
	}

	prevByHash := map[string]Entry{}
	for _, e := range opts.Previous {
		prevByHash[e.Hash] = e
	}

	var entries []Entry
	start := 0.0
	for i := range wavs {
		raw, err := os.ReadFile(txts[i])
		if err != nil {
			return nil, fmt.Errorf("timeline: read %s: %w", txts[i], err)
		}
		text := strings.TrimSpace(strings.TrimPrefix(string(raw), "\ufeff"))
		if text == "" {
			return nil, fmt.Errorf("%w: %s", ErrEmptyDialogue, txts[i])
		}

		duration, err := probe(wavs[i])
		if err != nil {
			return nil, fmt.Errorf("timeline: probe %s: %w", wavs[i], err)
		}

		e := Entry{
			Start:     start,
			End:       start + duration,
			Character: characterFromFilename(txts[i]),
			Hash:      HashPrefix(text),
			Text:      WrapText(text, opts.MaxLineRunes),
			Status:    "n",
		}
		if prev, ok := prevByHash[e.Hash]; ok {
			e.Text = prev.Text
			e.Slide = prev.Slide
			e.Status = prev.Status
			e.Action = prev.Action
		}
		entries = append(entries, e)
		start = e.End
	}
	return entries, nil
}

// characterFromFilename extracts the speaker from "012_zunda.txt".
func characterFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if _, rest, ok := strings.Cut(base, "_"); ok {
		return rest
	}
	return base
}

func sortedFiles(dir, ext string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("timeline: read dir %s: %w", dir, err)
	}
	var paths []string
	for _, de := range des {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, de.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
