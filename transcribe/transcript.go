package transcribe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ChunkTranscript holds the recognized segments of one chunk.
type ChunkTranscript struct {
	Object   Object
	Segments []Segment
}

// FormatTimestamp renders d as H:MM:SS, truncating fractions of a second.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, s/60%60, s%60)
}

// FormatTranscript joins the chunks into one document. Every segment becomes
// "\n" + timestamp + "\n" + text, where the timestamp is the chunk's index
// times segmentLength plus the segment's start within the chunk.
func FormatTranscript(chunks []ChunkTranscript, segmentLength time.Duration) string {
	var b strings.Builder
	for i, chunk := range chunks {
		offset := time.Duration(i) * segmentLength
		for _, seg := range chunk.Segments {
			b.WriteString("\n")
			b.WriteString(FormatTimestamp(offset + seg.Start))
			b.WriteString("\n")
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}

// TranscriptPath is where the transcript of video is written.
func TranscriptPath(outputDir, video string) string {
	return filepath.Join(outputDir, stem(video)+".txt")
}

func writeTranscript(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating transcript directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}
