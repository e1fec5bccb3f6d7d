package gateway

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// Form accumulates fields and file parts for a multipart request.
type Form struct {
	fields [][2]string
	files  []formFile
}

type formFile struct {
	field    string
	filename string
	content  []byte
}

func NewForm() *Form {
	return &Form{}
}

func (f *Form) Set(field, value string) *Form {
	f.fields = append(f.fields, [2]string{field, value})
	return f
}

func (f *Form) File(field, filename string, content []byte) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, content: content})
	return f
}

func (f *Form) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, kv := range f.fields {
		if err := w.WriteField(kv[0], kv[1]); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", kv[0], err)
		}
	}

	for _, file := range f.files {
		part, err := w.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %q: %w", file.field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			return nil, "", fmt.Errorf("write file part %q: %w", file.field, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}

	return &buf, w.FormDataContentType(), nil
}
