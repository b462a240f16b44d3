package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// Endpoint paths for profile operations.
const (
	profilePath        = "/account/api/profile/"
	profileSetRolePath = "/account/api/profile/role/"
)

// FileUpload is one file part of a multipart profile update.
type FileUpload struct {
	// Field is the form field name ("profile_picture", "identity_document").
	Field string

	// Filename is the client-side file name.
	Filename string

	// Content is the file body.
	Content io.Reader
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, profilePath, nil, false)
}

// SetRole sets the account role ("buyer", "seller").
func (c *Client) SetRole(ctx context.Context, role string) error {
	_, err := c.mutate(ctx, http.MethodPut, profileSetRolePath, map[string]string{"role": role})
	return err
}

// UpdateProfile updates profile fields, with optional file uploads
// (profile picture, identity documents) sent as multipart form data.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]string, files []FileUpload) error {
	if len(files) == 0 {
		_, err := c.mutate(ctx, http.MethodPost, profilePath, fields)
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	for _, file := range files {
		part, err := writer.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return fmt.Errorf("create form file %s: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return fmt.Errorf("copy form file %s: %w", file.Field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalize multipart form: %w", err)
	}

	_, err := c.mutateMultipart(ctx, http.MethodPost, profilePath, writer.FormDataContentType(), &buf)
	return err
}
