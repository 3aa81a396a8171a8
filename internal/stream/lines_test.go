package stream_test

import (
	"testing"

	"github.com/MegaGrindStone/askstream/internal/stream"
	"github.com/google/go-cmp/cmp"
)

func TestLineDecoderFeed(t *testing.T) {
	tests := []struct {
		name   string
		chunks []string
		want   []string
		rest   int
	}{
		{
			name:   "single complete line",
			chunks: []string{"data: 1\n"},
			want:   []string{"data: 1"},
		},
		{
			name:   "line split across chunks",
			chunks: []string{"da", "ta: ", "1\nda"},
			want:   []string{"data: 1"},
			rest:   2,
		},
		{
			name:   "several lines in one chunk",
			chunks: []string{"a\nb\n\nc"},
			want:   []string{"a", "b", ""},
			rest:   1,
		},
		{
			name:   "CRLF line endings",
			chunks: []string{"data: 1\r", "\n\r\nx\r"},
			want:   []string{"data: 1", ""},
			rest:   2,
		},
		{
			name:   "empty chunks",
			chunks: []string{"", "x", "", "\n"},
			want:   []string{"x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := stream.NewLineDecoder(false)
			var got []string
			for _, c := range tt.chunks {
				got = append(got, d.Feed([]byte(c))...)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Feed() lines mismatch (-want +got):\n%s", diff)
			}
			if d.Pending() != tt.rest {
				t.Errorf("Pending() = %d, want %d", d.Pending(), tt.rest)
			}
		})
	}
}

func TestLineDecoderMultiByteSplit(t *testing.T) {
	raw := []byte("안녕하세요\n")
	for i := 1; i < len(raw); i++ {
		d := stream.NewLineDecoder(false)
		if lines := d.Feed(raw[:i]); len(lines) != 0 {
			t.Fatalf("split %d: got early lines %q", i, lines)
		}
		lines := d.Feed(raw[i:])
		if len(lines) != 1 || lines[0] != "안녕하세요" {
			t.Fatalf("split %d: got %q, want [안녕하세요]", i, lines)
		}
	}
}

func TestLineDecoderClose(t *testing.T) {
	tests := []struct {
		name           string
		flushRemainder bool
		input          string
		wantLine       string
		wantOK         bool
	}{
		{name: "discard remainder", input: "a\nrest", wantOK: false},
		{name: "flush remainder", flushRemainder: true, input: "a\nrest", wantLine: "rest", wantOK: true},
		{name: "flush without remainder", flushRemainder: true, input: "a\n", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := stream.NewLineDecoder(tt.flushRemainder)
			d.Feed([]byte(tt.input))

			line, ok := d.Close()
			if ok != tt.wantOK || line != tt.wantLine {
				t.Errorf("Close() = (%q, %v), want (%q, %v)", line, ok, tt.wantLine, tt.wantOK)
			}
			if d.Pending() != 0 {
				t.Errorf("Pending() after Close() = %d, want 0", d.Pending())
			}
		})
	}
}
