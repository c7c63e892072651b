package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Segment is one recognized passage, with its start relative to the chunk.
type Segment struct {
	Start time.Duration
	Text  string
}

// Recognizer turns a stored chunk into text.
type Recognizer interface {
	Recognize(ctx context.Context, obj Object) ([]Segment, error)
}

// RecognitionConfig describes the audio and the expected speakers.
type RecognitionConfig struct {
	LanguageCode string
	Encoding     string
	SampleRate   int
	Channels     int
	MinSpeakers  int
	MaxSpeakers  int
}

// CommandRecognizer runs an external speech-to-text command once per chunk.
//
// Arguments may contain the placeholders {uri}, {path}, {language},
// {encoding}, {sample_rate}, {channels}, {min_speakers} and {max_speakers}.
// If neither {uri} nor {path} appears, the URI is appended as the last
// argument. The command must print JSON to standard output:
//
//	{"results": [{"transcript": "...", "start": 1.5, "words": [{"word": "...", "start": 1.5}]}]}
//
// A result starts at the earliest of its start and its words' starts.
type CommandRecognizer struct {
	Command []string
	Config  RecognitionConfig
	Runner  CommandRunner
	// Timeout bounds one chunk. Zero means no limit.
	Timeout time.Duration
}

type recognitionOutput struct {
	Results []recognitionResult `json:"results"`
}

type recognitionResult struct {
	Transcript string            `json:"transcript"`
	Start      *float64          `json:"start"`
	Words      []recognitionWord `json:"words"`
}

type recognitionWord struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
}

func (r *CommandRecognizer) Recognize(ctx context.Context, obj Object) ([]Segment, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("no recognizer command configured")
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.args(obj)
	out, err := r.Runner.Run(ctx, r.Command[0], args...)
	if err != nil {
		return nil, fmt.Errorf("recognizing %s: %w", obj.URI, err)
	}

	var parsed recognitionOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("parsing recognizer output for %s: %w", obj.URI, err)
	}
	return segments(parsed), nil
}

func (r *CommandRecognizer) args(obj Object) []string {
	c := r.Config
	replacer := strings.NewReplacer(
		"{uri}", obj.URI,
		"{path}", obj.Path,
		"{language}", c.LanguageCode,
		"{encoding}", c.Encoding,
		"{sample_rate}", strconv.Itoa(c.SampleRate),
		"{channels}", strconv.Itoa(c.Channels),
		"{min_speakers}", strconv.Itoa(c.MinSpeakers),
		"{max_speakers}", strconv.Itoa(c.MaxSpeakers),
	)

	args := make([]string, 0, len(r.Command))
	located := false
	for _, a := range r.Command[1:] {
		if strings.Contains(a, "{uri}") || strings.Contains(a, "{path}") {
			located = true
		}
		args = append(args, replacer.Replace(a))
	}
	if !located {
		args = append(args, obj.URI)
	}
	return args
}

func segments(out recognitionOutput) []Segment {
	segs := make([]Segment, 0, len(out.Results))
	for _, res := range out.Results {
		text := strings.TrimSpace(res.Transcript)
		if text == "" {
			continue
		}
		start := math.Inf(1)
		if res.Start != nil {
			start = *res.Start
		}
		for _, w := range res.Words {
			start = min(start, w.Start)
		}
		if math.IsInf(start, 1) || start < 0 {
			start = 0
		}
		segs = append(segs, Segment{
			Start: time.Duration(math.Round(start*1000)) * time.Millisecond,
			Text:  text,
		})
	}
	return segs
}
