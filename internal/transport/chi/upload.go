package chi

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
)

// multipartUpload adapts an uploaded multipart file to ingest.Upload.
type multipartUpload struct {
	header *multipart.FileHeader
}

func newMultipartUpload(h *multipart.FileHeader) *multipartUpload {
	return &multipartUpload{header: h}
}

func (u *multipartUpload) Filename() string { return u.header.Filename }

func (u *multipartUpload) Save(path string) error {
	src, err := u.header.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return dst.Close()
}
