package timeline

import (
	"strings"
	"testing"

	"github.com/ivlev/talk2video/internal/config"
)

func sceneConfig() *config.Config {
	cfg := config.Default()
	cfg.Video.Width = 320
	cfg.Video.Height = 180
	cfg.Video.Layers = []config.Layer{
		{Type: "solid", Name: "bg", Color: "#1e1e2e", Position: [2]float64{160, 90}},
		{Type: "qr", Name: "qr", QRContent: "https://example.com", QRSize: 64, Position: [2]float64{280, 140}},
		{
			Type:           "character",
			Name:           "zunda",
			CharacterDir:   "assets/character/zunda",
			CharacterName:  "zunda",
			InitialStatus:  "n",
			BlinkPerMinute: 3,
			BlinkDuration:  0.2,
			Position:       [2]float64{260, 160},
			Scale:          0.7,
		},
	}
	return cfg
}

func sceneEntries() []Entry {
	return []Entry{
		{Start: 0, End: 2, Character: "zunda", Text: "Hi.", Status: "n"},
		{Start: 2, End: 4, Character: "zunda", Text: "Look.", Slide: 1, Status: "happy", Action: "fade_in"},
		{Start: 4, End: 6, Character: "zunda", Text: "Bye.", Slide: 1, Status: "n"},
	}
}

func TestBuildSceneLayers(t *testing.T) {
	comp, err := BuildScene(sceneConfig(), sceneEntries())
	if err != nil {
		t.Fatal(err)
	}
	if got := comp.Size(); got.X != 320 || got.Y != 180 {
		t.Errorf("composition size = %v", got)
	}
	if len(comp.Layers()) != 3 {
		t.Fatalf("layer count = %d, want 3", len(comp.Layers()))
	}
	for _, name := range []string{"bg", "qr", "zunda"} {
		if comp.LayerByName(name) == nil {
			t.Errorf("layer %q missing", name)
		}
	}

	z := comp.LayerByName("zunda")
	app := z.AppearanceAt(5)
	if app.Scale != [2]float64{0.7, 0.7} {
		t.Errorf("character scale = %v, want {0.7 0.7}", app.Scale)
	}
	if app.Position != [2]float64{260, 160} {
		t.Errorf("character position = %v", app.Position)
	}
}

func TestBuildSceneAppliesActions(t *testing.T) {
	comp, err := BuildScene(sceneConfig(), sceneEntries())
	if err != nil {
		t.Fatal(err)
	}
	z := comp.LayerByName("zunda")
	// fade_in starts at t=2: opacity 0 there, 1 once the action ends.
	if got := z.Opacity().ValueAt(2)[0]; got != 0 {
		t.Errorf("opacity at action start = %v, want 0", got)
	}
	if got := z.Opacity().ValueAt(3.5)[0]; got != 1 {
		t.Errorf("opacity after action = %v, want 1", got)
	}
}

func TestBuildSceneUnknownAction(t *testing.T) {
	entries := sceneEntries()
	entries[1].Action = "teleport"
	_, err := BuildScene(sceneConfig(), entries)
	if err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Errorf("got %v, want an unknown action error", err)
	}
}

func TestBuildSceneUnknownActionTarget(t *testing.T) {
	entries := sceneEntries()
	entries[1].Character = "ghost"
	_, err := BuildScene(sceneConfig(), entries)
	if err == nil || !strings.Contains(err.Error(), "unknown layer") {
		t.Errorf("got %v, want an unknown layer error", err)
	}
}

func TestBuildSceneNestedComposition(t *testing.T) {
	cfg := sceneConfig()
	cfg.Video.Layers = append(cfg.Video.Layers, config.Layer{
		Type:     "composition",
		Name:     "overlay",
		Width:    160,
		Height:   90,
		Position: [2]float64{80, 45},
		Layers: []config.Layer{
			{Type: "solid", Name: "panel", Color: "#000000", Position: [2]float64{80, 45}},
			{Type: "qr", Name: "inner_qr", QRContent: "x", QRSize: 32, Position: [2]float64{80, 45}},
		},
	})
	entries := sceneEntries()
	entries[1].Character = "panel"
	entries[1].Action = "fade_in"

	comp, err := BuildScene(cfg, entries)
	if err != nil {
		t.Fatal(err)
	}
	overlay := comp.LayerByName("overlay")
	if overlay == nil || !overlay.IsComposition() {
		t.Fatal("overlay layer missing or not a composition")
	}
	sub := overlay.Composition()
	if got := sub.Size(); got.X != 160 || got.Y != 90 {
		t.Errorf("nested canvas = %v, want 160x90", got)
	}
	if len(sub.Layers()) != 2 {
		t.Fatalf("nested layer count = %d, want 2", len(sub.Layers()))
	}

	// Actions reach layers inside nested compositions.
	panel := sub.LayerByName("panel")
	if got := panel.Opacity().ValueAt(2)[0]; got != 0 {
		t.Errorf("nested action not applied, opacity at start = %v", got)
	}
}

func TestSlidePageFunc(t *testing.T) {
	pageAt := slidePageFunc([]Entry{
		{Start: 0, End: 2},
		{Start: 2, End: 4, Slide: 1},
		{Start: 4, End: 6},
		{Start: 6, End: 8, Slide: 2},
	})
	cases := []struct {
		t    float64
		want int
	}{
		{0, 0},
		{1.9, 0},
		{2, 1},
		{5, 1},
		{6, 3},
		{100, 3},
	}
	for _, c := range cases {
		if got := pageAt(c.t); got != c.want {
			t.Errorf("pageAt(%v) = %d, want %d", c.t, got, c.want)
		}
	}
}

func TestCharacterStatusFollowsDialogue(t *testing.T) {
	spec := &config.Layer{Type: "character", Name: "zunda", CharacterName: "zunda", InitialStatus: "n"}
	st, err := characterStatus(spec, sceneEntries(), 6)
	if err != nil {
		t.Fatal(err)
	}
	if got := st.StatusAt(1); got != "n" {
		t.Errorf("status at 1 = %q, want n", got)
	}
	if got := st.StatusAt(3); got != "happy" {
		t.Errorf("status at 3 = %q, want happy", got)
	}
	if got := st.StatusAt(5); got != "n" {
		t.Errorf("status at 5 = %q, want n", got)
	}
}

func TestCharacterStatusBlinksRestoreExpression(t *testing.T) {
	spec := &config.Layer{
		Type: "character", Name: "zunda", CharacterName: "zunda",
		InitialStatus: "n", BlinkPerMinute: 60, BlinkDuration: 0.1,
	}
	entries := []Entry{{Start: 0, End: 30, Character: "zunda", Status: "happy"}}
	st, err := characterStatus(spec, entries, 30)
	if err != nil {
		t.Fatal(err)
	}
	sawBlink := false
	for t2 := 0.0; t2 < 30; t2 += 0.05 {
		if st.StatusAt(t2) == "blink" {
			sawBlink = true
			break
		}
	}
	if !sawBlink {
		t.Error("no blink status found over 30 seconds")
	}
	if got := st.StatusAt(29.99); got != "happy" && got != "blink" {
		t.Errorf("status near the end = %q, expression was not restored", got)
	}
}

func TestSubtitlesCarrySpeakerStyle(t *testing.T) {
	subs := Subtitles(sceneEntries())
	if len(subs) != 3 {
		t.Fatalf("got %d subtitle entries, want 3", len(subs))
	}
	if subs[1].Style != "zunda" || subs[1].Start != 2 || subs[1].End != 4 || subs[1].Text != "Look." {
		t.Errorf("subtitle entry = %+v", subs[1])
	}
}
