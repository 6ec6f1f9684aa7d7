package verify

import "fmt"

// Stage is a step of the verification pipeline.
type Stage string

const (
	StageReceived    Stage = "received"
	StageNormalized  Stage = "normalized"
	StageTranscribed Stage = "transcribed"
	StageScored      Stage = "scored"
	StageCompleted   Stage = "completed"
	StageFailed      Stage = "failed"
)

// Code is a machine-readable failure reason.
type Code string

const (
	CodeInvalidUpload            Code = "invalid_upload"
	CodeUnknownWord              Code = "unknown_word"
	CodeUnsupportedFormat        Code = "unsupported_format"
	CodeConversionFailed         Code = "conversion_failed"
	CodeTranscoderUnavailable    Code = "transcoder_unavailable"
	CodeTranscriptionUnavailable Code = "transcription_unavailable"
	CodeInternal                 Code = "internal_error"
)

// Failure is the only error type Verify returns. Stage is where the
// pipeline stopped.
type Failure struct {
	Code    Code
	Stage   Stage
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", f.Code, f.Stage, f.Message, f.Err)
	}
	return fmt.Sprintf("%s at %s: %s", f.Code, f.Stage, f.Message)
}

func (f *Failure) Unwrap() error { return f.Err }

func fail(code Code, stage Stage, msg string, err error) *Failure {
	return &Failure{Code: code, Stage: stage, Message: msg, Err: err}
}
