package upstream

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
)

// FilePart is a file field of a multipart upload.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Reader      io.Reader
}

// Multipart is a multipart/form-data request body. It is streamed, so the
// client places no limit on the upload size.
type Multipart struct {
	// Fields are written in slice order.
	Fields [][2]string
	Files  []FilePart
}

// AddField appends a form field.
func (m *Multipart) AddField(name, value string) {
	m.Fields = append(m.Fields, [2]string{name, value})
}

// AddFile appends a file part.
func (m *Multipart) AddFile(part FilePart) {
	m.Files = append(m.Files, part)
}

func (m *Multipart) stream() (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(m.write(mw))
	}()

	return pr, mw.FormDataContentType()
}

func (m *Multipart) write(mw *multipart.Writer) error {
	for _, f := range m.Fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(f.Field), escapeQuotes(f.FileName)))
		contentType := f.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)

		w, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if f.Reader != nil {
			if _, err := io.Copy(w, f.Reader); err != nil {
				return fmt.Errorf("copy part %s: %w", f.Field, err)
			}
		}
	}
	return mw.Close()
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
