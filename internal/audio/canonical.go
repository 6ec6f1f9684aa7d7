package audio

import (
	"fmt"
	"os"

	"github.com/go-audio/wav"
)

// Spec describes a PCM WAV layout.
type Spec struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// CanonicalSpec is the single layout every upload is normalized to before transcription.
var CanonicalSpec = Spec{SampleRate: 16000, Channels: 1, BitDepth: 16}

// wavFormatPCM is the WAVE_FORMAT_PCM tag in the fmt chunk.
const wavFormatPCM = 1

// ReadSpec reads the fmt chunk of a WAV file. Fails if the file is not a
// RIFF/WAVE container with linear PCM samples and a data chunk.
func ReadSpec(path string) (Spec, error) {
	f, err := os.Open(path)
	if err != nil {
		return Spec{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Spec{}, fmt.Errorf("not a valid wav file")
	}
	if d.WavAudioFormat != wavFormatPCM {
		return Spec{}, fmt.Errorf("wav encoding %d is not linear PCM", d.WavAudioFormat)
	}
	if err := d.FwdToPCM(); err != nil {
		return Spec{}, fmt.Errorf("wav data chunk: %w", err)
	}
	return Spec{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}, nil
}

// CheckCanonical returns nil if path is a WAV file in CanonicalSpec.
func CheckCanonical(path string) error {
	got, err := ReadSpec(path)
	if err != nil {
		return err
	}
	if got != CanonicalSpec {
		return fmt.Errorf("wav is %d Hz / %d ch / %d bit, want %d Hz / %d ch / %d bit",
			got.SampleRate, got.Channels, got.BitDepth,
			CanonicalSpec.SampleRate, CanonicalSpec.Channels, CanonicalSpec.BitDepth)
	}
	return nil
}
