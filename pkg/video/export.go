package video

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

var qualityCRF = map[string]int{"low": 32, "medium": 26, "high": 20}

// codecs per container: video, audio.
var formatCodecs = map[string][2]string{
	"mp4":  {"libx264", "aac"},
	"webm": {"libvpx-vp9", "libopus"},
}

// Resolver maps a media URL to something ffmpeg can open (a local path or URL).
type Resolver func(sourceURL string) (string, error)

// ExportPlan is a compiled ffmpeg invocation for one project.
type ExportPlan struct {
	Output   string
	Duration float64
	stream   *ffmpeg.Stream
}

// Args is the full command line, starting with the ffmpeg binary.
func (e *ExportPlan) Args() []string {
	return append([]string{"ffmpeg"}, e.stream.GetArgs()...)
}

// Run executes the plan, killing ffmpeg when ctx ends.
func (e *ExportPlan) Run(ctx context.Context) error {
	args := e.Args()
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(out)
		if len(tail) > 2000 {
			tail = tail[len(tail)-2000:]
		}
		log.Errorf("ExportPlan.Run: ffmpeg failed for %s: %v\n%s", e.Output, err, tail)
		return fmt.Errorf("ffmpeg export failed: %w", err)
	}
	log.Infof("ExportPlan.Run: wrote %s (%.2fs)", e.Output, e.Duration)
	return nil
}

// PlanExport builds the ffmpeg graph: each clip is trimmed on input, retimed,
// colour adjusted and scaled, the clips are concatenated in array order,
// text overlays are drawn, and audio tracks are mixed over the clip audio.
func PlanExport(p *Project, resolve Resolver, output string) (*ExportPlan, error) {
	if len(p.Clips) == 0 {
		return nil, ErrEmptyPlaylist
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if resolve == nil {
		resolve = func(u string) (string, error) { return u, nil }
	}
	settings := p.ExportSettings
	codecs := formatCodecs[settings.Format]
	width, height := settings.Resolution.Width, settings.Resolution.Height

	var videos, audios []*ffmpeg.Stream
	for _, c := range p.Clips {
		src, err := resolve(c.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve clip %s: %w", c.ID, err)
		}
		in := ffmpeg.Input(src, ffmpeg.KwArgs{
			"ss": seconds(c.Trim.Start),
			"t":  seconds(c.Trim.Length()),
		})

		v := in.Video().Filter("setpts", ffmpeg.Args{seconds(1/c.Speed) + "*PTS"})
		if eq := eqArgs(c.Filters); eq != nil {
			v = v.Filter("eq", ffmpeg.Args{}, eq)
		}
		if c.Filters.Grayscale {
			v = v.Filter("hue", ffmpeg.Args{}, ffmpeg.KwArgs{"s": 0})
		}
		v = v.Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": width, "h": height, "force_original_aspect_ratio": "decrease"}).
			Filter("pad", ffmpeg.Args{}, ffmpeg.KwArgs{"w": width, "h": height, "x": "(ow-iw)/2", "y": "(oh-ih)/2"}).
			Filter("setsar", ffmpeg.Args{"1"}).
			Filter("fps", ffmpeg.Args{strconv.Itoa(settings.FPS)})
		videos = append(videos, v)

		a := in.Audio()
		for _, factor := range atempoChain(c.Speed) {
			a = a.Filter("atempo", ffmpeg.Args{seconds(factor)})
		}
		volume := c.Volume
		if c.Muted {
			volume = 0
		}
		a = a.Filter("volume", ffmpeg.Args{seconds(volume)})
		audios = append(audios, a)
	}

	n := len(p.Clips)
	video := ffmpeg.Filter(videos, "concat", ffmpeg.Args{}, ffmpeg.KwArgs{"n": n, "v": 1, "a": 0})
	audio := ffmpeg.Filter(audios, "concat", ffmpeg.Args{}, ffmpeg.KwArgs{"n": n, "v": 0, "a": 1})

	for _, o := range p.TextOverlays {
		video = video.Filter("drawtext", ffmpeg.Args{}, drawtextArgs(o))
	}

	if len(p.AudioTracks) > 0 {
		mix := []*ffmpeg.Stream{audio}
		for _, t := range p.AudioTracks {
			src, err := resolve(t.SourceURL)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve audio track %s: %w", t.ID, err)
			}
			kw := ffmpeg.KwArgs{}
			if t.Trim.End > t.Trim.Start {
				kw["ss"] = seconds(t.Trim.Start)
				kw["t"] = seconds(t.Trim.Length())
			}
			track := ffmpeg.Input(src, kw).Audio()
			if delay := int(t.Start * 1000); delay > 0 {
				track = track.Filter("adelay", ffmpeg.Args{fmt.Sprintf("%d|%d", delay, delay)})
			}
			mix = append(mix, track.Filter("volume", ffmpeg.Args{seconds(t.Volume)}))
		}
		audio = ffmpeg.Filter(mix, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{"inputs": len(mix), "duration": "first"})
	}

	out := ffmpeg.Output([]*ffmpeg.Stream{video, audio}, output, ffmpeg.KwArgs{
		"c:v":     codecs[0],
		"c:a":     codecs[1],
		"crf":     qualityCRF[settings.Quality],
		"pix_fmt": "yuv420p",
	}).OverWriteOutput()

	return &ExportPlan{Output: output, Duration: p.Duration, stream: out}, nil
}

// atempoChain splits speed into atempo factors inside the filter's 0.5..2 range.
func atempoChain(speed float64) []float64 {
	if speed <= 0 {
		speed = 1
	}
	var chain []float64
	for speed > 2 {
		chain = append(chain, 2)
		speed /= 2
	}
	for speed < 0.5 {
		chain = append(chain, 0.5)
		speed /= 0.5
	}
	return append(chain, speed)
}

func eqArgs(f Filters) ffmpeg.KwArgs {
	if f.Brightness == 0 && f.Contrast == 0 && f.Saturation == 0 {
		return nil
	}
	kw := ffmpeg.KwArgs{}
	if f.Brightness != 0 {
		kw["brightness"] = seconds(f.Brightness)
	}
	if f.Contrast != 0 {
		kw["contrast"] = seconds(f.Contrast)
	}
	if f.Saturation != 0 {
		kw["saturation"] = seconds(f.Saturation)
	}
	return kw
}

func drawtextArgs(o TextOverlay) ffmpeg.KwArgs {
	size := o.FontSize
	if size <= 0 {
		size = 48
	}
	color := o.Color
	if color == "" {
		color = "white"
	}
	return ffmpeg.KwArgs{
		"text":      escapeDrawtext(o.Text),
		"fontsize":  size,
		"fontcolor": color,
		"x":         fmt.Sprintf("(w-text_w)*%s", seconds(o.X)),
		"y":         fmt.Sprintf("(h-text_h)*%s", seconds(o.Y)),
		"enable":    fmt.Sprintf("between(t,%s,%s)", seconds(o.Start), seconds(o.End)),
	}
}

// escapeDrawtext keeps '%' literal; ffmpeg-go escapes the filter syntax itself.
func escapeDrawtext(s string) string {
	return strings.ReplaceAll(s, "%", `\%`)
}

// seconds formats with millisecond precision and no trailing zeros.
func seconds(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}
