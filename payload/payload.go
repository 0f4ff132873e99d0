// Package payload builds transport bodies for Connecto API submissions,
// switching between JSON and multipart encodings depending on whether binary
// attachment data is present.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"

	"connecto/models"
)

// Body is an encoded request body ready to be sent by the request client.
type Body struct {
	ContentType string
	Reader      *bytes.Reader
}

// JSON encodes v as an application/json body.
func JSON(v any) (*Body, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode json body: %w", err)
	}
	return &Body{ContentType: "application/json", Reader: bytes.NewReader(b)}, nil
}

// EncodePost builds the body for a post submission. A multipart body carries
// both the caption field and the raw image bytes when an image is attached;
// plain JSON cannot hold binary data losslessly, so it is only used for
// text-only posts. An empty post is rejected before any encoding happens.
func EncodePost(p models.PendingPost) (*Body, error) {
	if !p.Valid() {
		return nil, models.NewValidationError("Please add some text or an image")
	}
	if len(p.Image) == 0 {
		return JSON(map[string]string{"caption": p.Caption})
	}
	return multipartBody(map[string]string{"caption": p.Caption}, "image", p.ImageName, p.Image)
}

// EncodeCaption builds the JSON body for a caption update.
func EncodeCaption(caption string) (*Body, error) {
	return JSON(map[string]string{"caption": caption})
}

// EncodeRegistration builds the body for an account registration. The same
// multipart-if-image rule as post submission applies to the optional avatar.
func EncodeRegistration(username, email, password string, avatar []byte, avatarName string) (*Body, error) {
	fields := map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	}
	if len(avatar) == 0 {
		return JSON(fields)
	}
	return multipartBody(fields, "image", avatarName, avatar)
}

func multipartBody(fields map[string]string, fileField, fileName string, blob []byte) (*Body, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, fmt.Errorf("write %s field: %w", name, err)
		}
	}

	if fileName == "" {
		fileName = "upload"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, fileName))
	header.Set("Content-Type", http.DetectContentType(blob))

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create %s part: %w", fileField, err)
	}
	if _, err := part.Write(blob); err != nil {
		return nil, fmt.Errorf("write %s part: %w", fileField, err)
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}
	return &Body{ContentType: w.FormDataContentType(), Reader: bytes.NewReader(buf.Bytes())}, nil
}
