package audio

import (
	"fmt"
	"log"
	"os"
	"os/exec"
)

// Transcoder converts a raw wav blob into the compressed distribution
// format. Called at most once per unique fingerprint; the content
// store enforces that upstream.
type Transcoder interface {
	Transcode(wavPath, outPath string) error
}

// FFmpegTranscoder shells out to ffmpeg to produce mono AAC in an
// .m4a container, the format the validation front end plays.
type FFmpegTranscoder struct{}

// Transcode converts wavPath to outPath. An existing output is left
// untouched and counts as success, so re-runs never re-encode.
func (FFmpegTranscoder) Transcode(wavPath, outPath string) error {
	if _, err := os.Stat(outPath); err == nil {
		log.Printf("already transcoded, skipping: %s", outPath)
		return nil
	}

	cmd := exec.Command("ffmpeg",
		"-i", wavPath,
		"-nostdin",
		"-n", // never overwrite
		"-ac", "1", // mix to mono
		"-acodec", "aac",
		outPath,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\noutput: %s", err, output)
	}
	return nil
}
