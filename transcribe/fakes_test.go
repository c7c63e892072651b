package transcribe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// fakeRunner records commands and runs an optional hook in their place.
type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	hook  func(name string, args []string) ([]byte, error)
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, append([]string{name}, args...))
	r.mu.Unlock()
	if r.hook != nil {
		return r.hook(name, args)
	}
	return nil, nil
}

func (r *fakeRunner) lastCall() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

// fakeAudio writes placeholder files instead of running ffmpeg.
type fakeAudio struct {
	parts      int
	extractErr error
}

func (a *fakeAudio) Extract(ctx context.Context, video, audioDir string) (string, error) {
	if a.extractErr != nil {
		return "", a.extractErr
	}
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return "", err
	}
	out := filepath.Join(audioDir, stem(video)+".flac")
	return out, os.WriteFile(out, []byte("audio of "+video), 0o644)
}

func (a *fakeAudio) Split(ctx context.Context, audio string, segment time.Duration) ([]string, error) {
	dir := strings.TrimSuffix(audio, ".flac")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var parts []string
	for i := 1; i <= a.parts; i++ {
		p := filepath.Join(dir, fmt.Sprintf("%s_part%02d.flac", stem(audio), i))
		if err := os.WriteFile(p, []byte(fmt.Sprintf("part %d", i)), 0o644); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// fakeRecognizer returns one segment per chunk naming the chunk's file.
type fakeRecognizer struct {
	mu    sync.Mutex
	seen  []string
	delay func(obj Object) time.Duration
	fail  string
}

func (r *fakeRecognizer) Recognize(ctx context.Context, obj Object) ([]Segment, error) {
	r.mu.Lock()
	r.seen = append(r.seen, filepath.Base(obj.Path))
	r.mu.Unlock()

	if r.delay != nil {
		select {
		case <-time.After(r.delay(obj)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.fail != "" && filepath.Base(obj.Path) == r.fail {
		return nil, fmt.Errorf("quota exceeded")
	}
	return []Segment{
		{Start: 5 * time.Second, Text: "text of " + filepath.Base(obj.Path)},
	}, nil
}
