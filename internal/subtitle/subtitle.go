// Package subtitle writes ASS and SRT subtitle files for burned-in or
// soft dialogue captions.
package subtitle

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Entry is one dialogue line with its on-screen interval in seconds.
type Entry struct {
	Start float64
	End   float64
	Text  string
	// Style names the ASS style to render with. Empty means "Default".
	Style string
}

// Style describes one ASS v4+ style line.
type Style struct {
	Name           string
	FontName       string
	FontSize       int
	PrimaryColor   string
	SecondaryColor string
	OutlineColor   string
	BackColor      string
	Bold           bool
	Italic         bool
	Underline      bool
	StrikeOut      bool
	ScaleX         int
	ScaleY         int
	Spacing        int
	Angle          int
	BorderStyle    int
	Outline        int
	Shadow         int
	MarginL        int
	MarginR        int
	MarginV        int
}

// DefaultStyle returns the style used when a script declares none.
func DefaultStyle() Style {
	return Style{
		Name:           "Default",
		FontName:       "Helvetica",
		FontSize:       60,
		PrimaryColor:   "&Hffffff",
		SecondaryColor: "&Hffffff",
		OutlineColor:   "&H0",
		BackColor:      "&H0",
		ScaleX:         100,
		ScaleY:         100,
		BorderStyle:    1,
		Outline:        5,
		MarginL:        10,
		MarginR:        10,
		MarginV:        30,
	}
}

// ASSColor converts a color to the &Hbbggrr form ASS styles expect.
func ASSColor(c colorful.Color) string {
	r, g, b := c.Clamped().RGB255()
	return fmt.Sprintf("&H%02x%02x%02x", b, g, r)
}

// ASSColorHex parses a CSS-style #rrggbb string and converts it.
func ASSColorHex(hex string) (string, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return "", fmt.Errorf("subtitle: parse color %q: %w", hex, err)
	}
	return ASSColor(c), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// assTime formats seconds as H:MM:SS.cc (centisecond precision).
func assTime(t float64) string {
	return fmt.Sprintf("%02d:%02d:%02d.%02d",
		int(t/3600), int(t/60)%60, int(t)%60, int(t*100)%100)
}

// srtTime formats seconds as HH:MM:SS,mmm.
func srtTime(t float64) string {
	return fmt.Sprintf("%02d:%02d:%02d,%03d",
		int(t/3600), int(t/60)%60, int(t)%60, int(t*1000)%1000)
}

func styleLine(s Style) string {
	return fmt.Sprintf("Style: %s,%s,%d,%s,%s,%s,%s,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,2,%d,%d,%d,1",
		s.Name, s.FontName, s.FontSize,
		s.PrimaryColor, s.SecondaryColor, s.OutlineColor, s.BackColor,
		boolInt(s.Bold), boolInt(s.Italic), boolInt(s.Underline), boolInt(s.StrikeOut),
		s.ScaleX, s.ScaleY, s.Spacing, s.Angle, s.BorderStyle,
		s.Outline, s.Shadow,
		s.MarginL, s.MarginR, s.MarginV)
}

// WriteASS writes a complete ASS script for the given entries. The play
// resolution must match the video the script will be burned into,
// otherwise margins and font sizes come out wrong.
func WriteASS(w io.Writer, entries []Entry, width, height int, styles ...Style) error {
	if len(styles) == 0 {
		styles = []Style{DefaultStyle()}
	}

	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("; Script generated by FFmpeg/Lavc60.14.101\n")
	b.WriteString("ScriptType: v4.00+\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", width)
	fmt.Fprintf(&b, "PlayResY: %d\n", height)
	b.WriteString("ScaledBorderAndShadow: yes\n")
	b.WriteString("YCbCr Matrix: None\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, " +
		"OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, " +
		"ScaleX, ScaleY, Spacing, Angle, BorderStyle, " +
		"Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	for _, s := range styles {
		b.WriteString(styleLine(s))
		b.WriteByte('\n')
	}

	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, e := range entries {
		style := e.Style
		if style == "" {
			style = "Default"
		}
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
			assTime(e.Start), assTime(e.End), style, e.Text)
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("subtitle: write ass: %w", err)
	}
	return nil
}

// WriteSRT writes the entries as a SubRip file. Newlines inside the
// text are stripped, SRT players treat them inconsistently.
func WriteSRT(w io.Writer, entries []Entry) error {
	var b strings.Builder
	for i, e := range entries {
		text := strings.ReplaceAll(e.Text, `\n`, "")
		text = strings.ReplaceAll(text, "\n", "")
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, srtTime(e.Start), srtTime(e.End), text)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("subtitle: write srt: %w", err)
	}
	return nil
}

// WriteASSFile renders entries to path, creating or truncating it.
func WriteASSFile(path string, entries []Entry, width, height int, styles ...Style) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("subtitle: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteASS(f, entries, width, height, styles...); err != nil {
		return err
	}
	return f.Close()
}

// WriteSRTFile renders entries to path, creating or truncating it.
func WriteSRTFile(path string, entries []Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("subtitle: create %s: %w", path, err)
	}
	defer f.Close()
	if err := WriteSRT(f, entries); err != nil {
		return err
	}
	return f.Close()
}
