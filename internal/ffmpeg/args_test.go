package ffmpeg

import (
	"slices"
	"strings"
	"testing"

	"github.com/heimdex/brushdetect/internal/detect"
	"github.com/heimdex/brushdetect/internal/highlight"
)

func rangePtr(t *testing.T, start, end int) *detect.Range {
	t.Helper()
	r, err := detect.NewRange(start, end)
	if err != nil {
		t.Fatalf("NewRange: %v", err)
	}
	return &r
}

func argAfter(args []string, flag string) string {
	i := slices.Index(args, flag)
	if i < 0 || i+1 >= len(args) {
		return ""
	}
	return args[i+1]
}

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		rate       float64
		wantFilter string
	}{
		{30, "setpts=30*PTS"},
		{25, "setpts=25*PTS"},
		{30000.0 / 1001.0, "setpts=29.97002997002997*PTS"},
	}
	for _, tt := range tests {
		args := NormalizeArgs("in.mp4", "out_1fps_tmp.mp4", tt.rate)
		if got := argAfter(args, "-vf"); got != tt.wantFilter {
			t.Errorf("rate %v: -vf = %q, want %q", tt.rate, got, tt.wantFilter)
		}
		if got := argAfter(args, "-r"); got != "1" {
			t.Errorf("rate %v: -r = %q, want 1", tt.rate, got)
		}
		if got := argAfter(args, "-i"); got != "in.mp4" {
			t.Errorf("-i = %q", got)
		}
		if args[len(args)-1] != "out_1fps_tmp.mp4" {
			t.Errorf("last arg = %q, want output path", args[len(args)-1])
		}
		if !slices.Contains(args, "-y") {
			t.Error("missing -y overwrite flag")
		}
	}
}

func TestLabelArgs(t *testing.T) {
	args := LabelArgs("a.mp4", "a_labeled.mp4")
	want := "drawtext=text='Frame %{n}':start_number=0:x=W-tw-20:y=20:fontsize=48" +
		":box=1:boxcolor=black@0.6:boxborderw=8:fontcolor=white"
	if got := argAfter(args, "-vf"); got != want {
		t.Errorf("-vf = %q\nwant %q", got, want)
	}
	if slices.Contains(args, "-r") {
		t.Error("label pass must keep the input rate")
	}
}

func TestEnableExpr(t *testing.T) {
	tests := []struct {
		name string
		hl   highlight.Predicate
		want string
	}{
		{"none", highlight.Build(nil, nil), ""},
		{"left", highlight.Build(rangePtr(t, 3, 5), nil), `between(n\,3\,5)`},
		{"right", highlight.Build(nil, rangePtr(t, 10, 12)), `between(n\,10\,12)`},
		{"both", highlight.Build(rangePtr(t, 3, 5), rangePtr(t, 10, 12)), `between(n\,3\,5)+between(n\,10\,12)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EnableExpr(tt.hl); got != tt.want {
				t.Errorf("EnableExpr() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestVisualizeArgs(t *testing.T) {
	hl := highlight.Build(rangePtr(t, 3, 5), nil)
	args := VisualizeArgs("a_1fps_tmp.mp4", "a_vis.mp4", hl, 10)

	vf := argAfter(args, "-vf")
	if !strings.HasPrefix(vf, "setpts=PTS/10,") {
		t.Errorf("-vf = %q, want setpts=PTS/10 prefix", vf)
	}
	if !strings.Contains(vf, `fontcolor=white:enable=not(between(n\,3\,5))`) {
		t.Errorf("-vf missing white pass: %q", vf)
	}
	if !strings.Contains(vf, `fontcolor=red:enable=between(n\,3\,5)`) {
		t.Errorf("-vf missing red pass: %q", vf)
	}
	if got := argAfter(args, "-r"); got != "10" {
		t.Errorf("-r = %q, want 10", got)
	}
}

func TestVisualizeFilterNoHighlight(t *testing.T) {
	vf := VisualizeFilter(highlight.Build(nil, nil))
	if strings.Contains(vf, "red") || strings.Contains(vf, "enable=") {
		t.Errorf("constant-false highlight should render the white pass only: %q", vf)
	}
	if strings.Count(vf, "drawtext=") != 1 {
		t.Errorf("expected one drawtext pass: %q", vf)
	}
}

func TestProbeRateArgs(t *testing.T) {
	args := ProbeRateArgs("a.mp4")
	if got := argAfter(args, "-show_entries"); got != "stream=r_frame_rate" {
		t.Errorf("-show_entries = %q", got)
	}
	if got := argAfter(args, "-select_streams"); got != "v:0" {
		t.Errorf("-select_streams = %q", got)
	}
}
