package api

import (
	"context"
	"net/http"
)

// Endpoint paths for authentication.
const (
	loginAPIPath    = "/account/api/login/"
	registerAPIPath = "/account/api/register/"
)

// AuthResult is the outcome of a successful login or registration.
// Tokens are persisted to the token store before this is returned.
type AuthResult struct {
	// Next is the server-suggested redirect target, if any.
	Next string
}

// Login authenticates with an email-or-phone identifier and password.
func (c *Client) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	body := map[string]string{
		"identifier": identifier,
		"password":   password,
	}

	result, err := c.mutate(ctx, http.MethodPost, loginAPIPath, body)
	if err != nil {
		return nil, err
	}

	// A 200 without tokens is an application-level failure
	if !result.Get("access_token").Exists() {
		return nil, &ValidationError{
			StatusCode: http.StatusOK,
			Message:    result.Get("error").String(),
			Fields:     fieldErrors(result),
		}
	}

	return &AuthResult{Next: result.Get("next").String()}, nil
}

// RegisterRequest is the body of a registration mutation.
type RegisterRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
}

// Register creates an account and signs it in.
func (c *Client) Register(ctx context.Context, reqBody RegisterRequest) (*AuthResult, error) {
	result, err := c.mutate(ctx, http.MethodPost, registerAPIPath, reqBody)
	if err != nil {
		return nil, err
	}

	if !result.Get("access_token").Exists() {
		return nil, &ValidationError{
			StatusCode: http.StatusOK,
			Message:    result.Get("error").String(),
			Fields:     fieldErrors(result),
		}
	}

	return &AuthResult{Next: result.Get("next").String()}, nil
}
