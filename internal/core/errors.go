package core

import "errors"

// Input rejections. Their messages are shown to the user as is.
var (
	ErrNoFilePart         = errors.New("No file part")
	ErrNoSelectedFile     = errors.New("No selected file")
	ErrFileTypeNotAllowed = errors.New("File type not allowed.")
	ErrResultNotFound     = errors.New("File not found")
)

// ErrorKind classifies why processing an accepted upload failed
type ErrorKind int

const (
	// KindDecode means the upload is not a decodable image
	KindDecode ErrorKind = iota + 1
	// KindModel means the segmentation model failed or returned unusable output
	KindModel
	// KindIO means reading or writing local files or the result index failed
	KindIO
)

func (k ErrorKind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindModel:
		return "model"
	case KindIO:
		return "io"
	default:
		return "unknown"
	}
}

// ProcessError is returned for every failure after an upload was accepted
type ProcessError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ProcessError) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// UserMessage is the text shown to the user when processing failed
func (e *ProcessError) UserMessage() string {
	return "Failed to process image: " + e.Error()
}

// IsInputError reports whether err rejects the request input rather than
// signalling a processing failure
func IsInputError(err error) bool {
	return errors.Is(err, ErrNoFilePart) ||
		errors.Is(err, ErrNoSelectedFile) ||
		errors.Is(err, ErrFileTypeNotAllowed)
}
