package audio

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// Format is an audio container format accepted for upload.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatWebM Format = "webm"
	FormatOGG  Format = "ogg"
	FormatMP3  Format = "mp3"
	FormatM4A  Format = "m4a"
	FormatAAC  Format = "aac"
	FormatFLAC Format = "flac"
	FormatAIFF Format = "aiff"
)

// Ext returns the file extension used when the upload is written to disk.
// Transcoders use it as a demuxer hint.
func (f Format) Ext() string { return "." + string(f) }

var extFormats = map[string]Format{
	".wav":  FormatWAV,
	".wave": FormatWAV,
	".webm": FormatWebM,
	".weba": FormatWebM,
	".mkv":  FormatWebM,
	".ogg":  FormatOGG,
	".oga":  FormatOGG,
	".opus": FormatOGG,
	".mp3":  FormatMP3,
	".m4a":  FormatM4A,
	".mp4":  FormatM4A,
	".3gp":  FormatM4A,
	".aac":  FormatAAC,
	".flac": FormatFLAC,
	".aif":  FormatAIFF,
	".aiff": FormatAIFF,
	".aifc": FormatAIFF,
}

var mimeFormats = map[string]Format{
	"audio/wav":      FormatWAV,
	"audio/wave":     FormatWAV,
	"audio/x-wav":    FormatWAV,
	"audio/vnd.wave": FormatWAV,
	"audio/webm":     FormatWebM,
	"video/webm":     FormatWebM,
	"audio/ogg":      FormatOGG,
	"audio/opus":     FormatOGG,
	"audio/mpeg":     FormatMP3,
	"audio/mp3":      FormatMP3,
	"audio/mp4":      FormatM4A,
	"audio/m4a":      FormatM4A,
	"audio/x-m4a":    FormatM4A,
	"video/mp4":      FormatM4A,
	"audio/aac":      FormatAAC,
	"audio/flac":     FormatFLAC,
	"audio/x-flac":   FormatFLAC,
	"audio/aiff":     FormatAIFF,
	"audio/x-aiff":   FormatAIFF,
}

// DetectFormat identifies the container of an upload.
// Priority: 1) magic bytes of the payload  2) filename extension  3) content type.
// An upload carrying no hint at all is assumed to be WebM, which is what
// browser MediaRecorder produces by default.
func DetectFormat(head []byte, filename, contentType string) (Format, error) {
	if f, ok := sniff(head); ok {
		return f, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		if f, ok := extFormats[ext]; ok {
			return f, nil
		}
	}

	mt := ""
	if contentType != "" {
		if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
			mt = strings.ToLower(parsed)
		}
	}
	if f, ok := mimeFormats[mt]; ok {
		return f, nil
	}

	generic := mt == "" || mt == "application/octet-stream"
	if ext == "" && generic {
		return FormatWebM, nil
	}
	return "", fmt.Errorf("%w: filename=%q content_type=%q", ErrUnsupportedFormat, filename, contentType)
}

// sniff checks the first bytes of a payload against known container signatures.
func sniff(b []byte) (Format, bool) {
	switch {
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return FormatWAV, true
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("FORM")) &&
		(bytes.Equal(b[8:12], []byte("AIFF")) || bytes.Equal(b[8:12], []byte("AIFC"))):
		return FormatAIFF, true
	case len(b) >= 4 && bytes.Equal(b[0:4], []byte("fLaC")):
		return FormatFLAC, true
	case len(b) >= 4 && bytes.Equal(b[0:4], []byte("OggS")):
		return FormatOGG, true
	case len(b) >= 4 && bytes.Equal(b[0:4], []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM, true
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return FormatM4A, true
	case len(b) >= 3 && bytes.Equal(b[0:3], []byte("ID3")):
		return FormatMP3, true
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xF6 == 0xF0:
		// ADTS sync word with layer bits 00
		return FormatAAC, true
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0:
		// MPEG audio frame sync with a non-reserved layer
		return FormatMP3, true
	}
	return "", false
}
