package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/itiky/synclist/model"
)

// Login authenticates the user and replaces the session credential.
func (c *Client) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return &ValidationError{Field: "email", Message: "Please enter both email and password."}
	}

	req := model.LoginRequest{Email: email, Password: password}
	res := model.LoginResponse{}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", false, req, &res, http.StatusOK); err != nil {
		return err
	}
	if res.Token == "" {
		return &RequestError{Method: http.MethodPost, Path: "/api/auth/login", Status: http.StatusOK, Message: DefaultErrorMessage}
	}

	if err := c.session.Login(res.Token, res.Name, res.ProfilePic); err != nil {
		return fmt.Errorf("session login: %w", err)
	}

	return nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	username, email = strings.TrimSpace(username), strings.TrimSpace(email)
	if username == "" {
		return &ValidationError{Field: "username", Message: "Please enter a username."}
	}
	if email == "" || password == "" {
		return &ValidationError{Field: "email", Message: "Please enter both email and password."}
	}

	req := model.RegisterRequest{Username: username, Email: email, Password: password}

	return c.do(ctx, http.MethodPost, "/api/auth/register", false, req, nil, http.StatusCreated)
}

// Logout clears the session credential.
func (c *Client) Logout() {
	c.session.Invalidate()
}

// Profile returns the session user details.
func (c *Client) Profile(ctx context.Context) (model.Profile, error) {
	res := model.ProfileResponse{}
	if err := c.do(ctx, http.MethodGet, "/api/auth/", true, nil, &res, http.StatusOK); err != nil {
		return model.Profile{}, err
	}

	return res.User, nil
}
