package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"
)

// File is a named payload destined for an export bundle.
type File struct {
	Name string
	Data []byte
}

// Bundle assembles the files into a single zip archive. Entries are stamped
// with the provided modification time so two exports of the same data
// produce byte-identical archives.
func Bundle(files []File, modified time.Time) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, f := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close archive: %w", err)
	}
	return buf.Bytes(), nil
}
