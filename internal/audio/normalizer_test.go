package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// writeWAV writes a short sine-free PCM file with the given layout.
func writeWAV(t *testing.T, path string, spec Spec) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, spec.SampleRate, spec.BitDepth, spec.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: spec.SampleRate, NumChannels: spec.Channels},
		Data:           make([]int, spec.SampleRate/10*spec.Channels),
		SourceBitDepth: spec.BitDepth,
	}
	for i := range buf.Data {
		buf.Data[i] = (i % 64) * 100
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
}

// fakeTool writes an executable shell script standing in for ffmpeg.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script transcoder fakes need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	script := "#!/bin/sh\n# last argument is the output path\nfor out; do :; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake tool: %v", err)
	}
	return path
}

func newTestTranscoder(t *testing.T, command string, timeout time.Duration) *Transcoder {
	t.Helper()
	tc, err := NewTranscoder(TranscoderOptions{
		Tool:    "ffmpeg",
		Command: command,
		Timeout: timeout,
		Log:     zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("NewTranscoder: %v", err)
	}
	return tc
}

func writeUpload(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write upload: %v", err)
	}
	return p
}

func TestNewTranscoder_Validation(t *testing.T) {
	if _, err := NewTranscoder(TranscoderOptions{Tool: "lame"}); err == nil {
		t.Error("expected error for unknown tool")
	}
	if _, err := NewTranscoder(TranscoderOptions{Command: `ffmpeg "unterminated`}); err == nil {
		t.Error("expected error for unparseable command")
	}
	tc, err := NewTranscoder(TranscoderOptions{Tool: "SOX"})
	if err != nil {
		t.Fatalf("NewTranscoder: %v", err)
	}
	if tc.Tool() != "sox" {
		t.Errorf("Tool = %q, want sox", tc.Tool())
	}
}

func TestTranscoderArgs(t *testing.T) {
	ff := newTestTranscoder(t, "nice -n 5 ffmpeg", time.Second)
	if len(ff.argv) != 4 || ff.argv[0] != "nice" {
		t.Errorf("argv = %v, want [nice -n 5 ffmpeg]", ff.argv)
	}
	args := ff.args("in.webm", "out.wav")
	want := map[string]string{"-ar": "16000", "-ac": "1", "-c:a": "pcm_s16le", "-i": "in.webm"}
	for i := 0; i < len(args)-1; i++ {
		if v, ok := want[args[i]]; ok && args[i+1] != v {
			t.Errorf("%s = %q, want %q", args[i], args[i+1], v)
		}
	}
	if args[len(args)-1] != "out.wav" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}

	sox, _ := NewTranscoder(TranscoderOptions{Tool: "sox"})
	sargs := sox.args("in.flac", "out.wav")
	if sargs[0] != "in.flac" || sargs[len(sargs)-1] != "out.wav" {
		t.Errorf("sox args = %v", sargs)
	}
}

func TestNormalize_CanonicalPassThrough(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "upload.wav")
	writeWAV(t, in, CanonicalSpec)
	want, err := os.ReadFile(in)
	if err != nil {
		t.Fatal(err)
	}

	// A tool that always fails proves the transcoder is never invoked.
	tc := newTestTranscoder(t, fakeTool(t, "exit 1"), time.Second)
	got, err := tc.Normalize(context.Background(), Input{Path: in, Format: FormatWAV})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Converted {
		t.Error("canonical input should not be converted")
	}
	if got.Path != filepath.Join(dir, CanonicalName) {
		t.Errorf("Path = %q", got.Path)
	}
	if err := CheckCanonical(got.Path); err != nil {
		t.Errorf("output not canonical: %v", err)
	}
	out, err := os.ReadFile(got.Path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Errorf("pass-through changed the audio: %d bytes in, %d bytes out", len(want), len(out))
	}
}

func TestNormalize_Converts(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.wav")
	writeWAV(t, fixture, CanonicalSpec)
	tc := newTestTranscoder(t, fakeTool(t, `cp "`+fixture+`" "$out"`), 5*time.Second)

	dir := t.TempDir()
	in := writeUpload(t, dir, "upload.webm", []byte{0x1A, 0x45, 0xDF, 0xA3, 1, 2, 3})

	got, err := tc.Normalize(context.Background(), Input{Path: in, Format: FormatWebM})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !got.Converted {
		t.Error("expected Converted = true")
	}
	if err := CheckCanonical(got.Path); err != nil {
		t.Errorf("output not canonical: %v", err)
	}
	if _, err := os.Stat(in); !os.IsNotExist(err) {
		t.Error("input should be removed after conversion")
	}
}

func TestNormalize_NonCanonicalWAVIsConverted(t *testing.T) {
	fixture := filepath.Join(t.TempDir(), "fixture.wav")
	writeWAV(t, fixture, CanonicalSpec)
	tc := newTestTranscoder(t, fakeTool(t, `cp "`+fixture+`" "$out"`), 5*time.Second)

	dir := t.TempDir()
	in := filepath.Join(dir, "upload.wav")
	writeWAV(t, in, Spec{SampleRate: 44100, Channels: 2, BitDepth: 16})

	got, err := tc.Normalize(context.Background(), Input{Path: in, Format: FormatWAV})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !got.Converted {
		t.Error("44.1 kHz stereo input should be converted")
	}
}

func TestNormalize_Errors(t *testing.T) {
	nonCanonical := filepath.Join(t.TempDir(), "stereo.wav")
	writeWAV(t, nonCanonical, Spec{SampleRate: 8000, Channels: 2, BitDepth: 16})

	tests := []struct {
		name    string
		command func(t *testing.T) string
		timeout time.Duration
		data    []byte
		want    error
	}{
		{
			name:    "empty input",
			command: func(t *testing.T) string { return "ffmpeg" },
			timeout: time.Second,
			data:    []byte{},
			want:    ErrEmptyInput,
		},
		{
			name:    "tool rejects input",
			command: func(t *testing.T) string { return fakeTool(t, "echo 'Invalid data found' >&2; exit 1") },
			timeout: 5 * time.Second,
			data:    []byte("garbage"),
			want:    ErrUndecodable,
		},
		{
			name:    "tool writes non-canonical output",
			command: func(t *testing.T) string { return fakeTool(t, `cp "`+nonCanonical+`" "$out"`) },
			timeout: 5 * time.Second,
			data:    []byte("garbage"),
			want:    ErrUndecodable,
		},
		{
			name:    "tool exceeds timeout",
			command: func(t *testing.T) string { return fakeTool(t, "exec sleep 10") },
			timeout: 200 * time.Millisecond,
			data:    []byte("garbage"),
			want:    ErrTranscoderUnavailable,
		},
		{
			name:    "tool missing",
			command: func(t *testing.T) string { return filepath.Join(t.TempDir(), "no-such-ffmpeg") },
			timeout: time.Second,
			data:    []byte("garbage"),
			want:    ErrTranscoderUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc := newTestTranscoder(t, tt.command(t), tt.timeout)
			dir := t.TempDir()
			in := writeUpload(t, dir, "upload.ogg", tt.data)

			_, err := tc.Normalize(context.Background(), Input{Path: in, Format: FormatOGG})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if _, statErr := os.Stat(filepath.Join(dir, CanonicalName)); !os.IsNotExist(statErr) {
				t.Error("failed conversion left output behind")
			}
		})
	}
}

func TestNormalize_CancelledContext(t *testing.T) {
	tc := newTestTranscoder(t, fakeTool(t, "exec sleep 10"), 10*time.Second)
	in := writeUpload(t, t.TempDir(), "upload.mp3", []byte("ID3garbage"))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := tc.Normalize(ctx, Input{Path: in, Format: FormatMP3})
	if !errors.Is(err, ErrTranscoderUnavailable) {
		t.Fatalf("err = %v, want ErrTranscoderUnavailable", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("cancellation did not stop the transcoder")
	}
}

func TestIsConversion(t *testing.T) {
	if !IsConversion(ErrUndecodable) || !IsConversion(ErrTranscoderUnavailable) {
		t.Error("conversion errors not recognized")
	}
	if IsConversion(ErrUnsupportedFormat) || IsConversion(errors.New("other")) {
		t.Error("non-conversion error recognized as conversion")
	}
}

func TestReadSpec_RejectsNonWAV(t *testing.T) {
	p := writeUpload(t, t.TempDir(), "x.wav", []byte("definitely not riff"))
	if _, err := ReadSpec(p); err == nil {
		t.Error("expected error for non-wav data")
	}
}
