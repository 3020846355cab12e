package core

import (
	"errors"
	"mime/multipart"
	"net/http"
)

// UploadField is the multipart field carrying the image
const UploadField = "file"

// FormUpload returns the uploaded file of the request. A missing field yields
// ErrNoFilePart and a field submitted without a file yields ErrNoSelectedFile.
// Other errors, such as an exceeded body limit, are returned unchanged.
func FormUpload(r *http.Request) (*multipart.FileHeader, error) {
	file, header, err := r.FormFile(UploadField)
	switch {
	case err == nil:
		// callers reopen the part through the header
		if cerr := file.Close(); cerr != nil {
			return nil, cerr
		}
		if header.Filename == "" {
			return nil, ErrNoSelectedFile
		}
		return header, nil
	case errors.Is(err, http.ErrMissingFile):
		// browsers send an empty filename when nothing was chosen, which the
		// multipart reader stores as a plain form value
		if r.MultipartForm != nil && len(r.MultipartForm.Value[UploadField]) > 0 {
			return nil, ErrNoSelectedFile
		}
		return nil, ErrNoFilePart
	case errors.Is(err, http.ErrNotMultipart):
		return nil, ErrNoFilePart
	default:
		return nil, err
	}
}
