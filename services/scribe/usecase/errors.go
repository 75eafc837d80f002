package usecase

import "errors"

var (
	ErrNotInVoice         = errors.New("you must be in a voice channel to start recording")
	ErrAlreadyRecording   = errors.New("a recording is already in progress in this server")
	ErrNoRecording        = errors.New("there's no recording in progress")
	ErrAudioMissing       = errors.New("audio file was not created")
	ErrNoAudio            = errors.New("the recording contains no speech or is too short")
	ErrNoSpeech           = errors.New("could not detect any speech in the recording")
	ErrTranscriptNotFound = errors.New("transcript not found")
	ErrEmptyName          = errors.New("transcript name must not be empty")
)

// Status classifies the outcome of a command for presentation.
type Status int

const (
	StatusOK Status = iota
	StatusUserError
	StatusNotFound
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUserError:
		return "user_error"
	case StatusNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, ErrTranscriptNotFound):
		return StatusNotFound
	case errors.Is(err, ErrNotInVoice),
		errors.Is(err, ErrAlreadyRecording),
		errors.Is(err, ErrNoRecording),
		errors.Is(err, ErrAudioMissing),
		errors.Is(err, ErrNoAudio),
		errors.Is(err, ErrNoSpeech),
		errors.Is(err, ErrEmptyName):
		return StatusUserError
	default:
		return StatusInternal
	}
}
