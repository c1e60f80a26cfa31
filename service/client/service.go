package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/itiky/synclist/model"
	"github.com/itiky/synclist/session"
)

// Client is the SyncList REST API client.
// Every authenticated call carries the injected Session credential; a 403 reply invalidates the Session.
type Client struct {
	// Config
	baseUrl *url.URL // API origin
	// State
	session *session.Session
	//
	httpClient *http.Client
}

// String implements the stringer interface.
func (c *Client) String() string {
	return fmt.Sprintf("Client (%s)", c.baseUrl.Host)
}

// BaseUrl returns the API origin.
func (c *Client) BaseUrl() *url.URL {
	u := *c.baseUrl
	return &u
}

// Session returns the injected Session.
func (c *Client) Session() *session.Session {
	return c.session
}

// Health checks the API availability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/", false, nil, nil, http.StatusOK)
}

// do sends a JSON request and decodes the JSON response into resBody (if not nil).
func (c *Client) do(ctx context.Context, method, path string, authenticated bool, reqBody, resBody interface{}, okStatuses ...int) error {
	reqErr := func(status int, msg string, err error) *RequestError {
		return &RequestError{Method: method, Path: path, Status: status, Message: msg, Err: err}
	}

	// Credential
	var token string
	generation := -1
	if authenticated {
		state := c.session.State()
		if state.Token == "" {
			return ErrNotAuthenticated
		}
		token, generation = state.Token, state.Generation
	}

	// Build
	var bodyReader io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("%s %s: JSON marshal: %w", method, path, err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.urlFor(path), bodyReader)
	if err != nil {
		return fmt.Errorf("%s %s: request build: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// Send
	opStart := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return reqErr(0, err.Error(), err)
	}
	defer res.Body.Close()

	raw, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return reqErr(res.StatusCode, err.Error(), err)
	}
	log.Printf("%s: %s %s: %d within %v", c.String(), method, path, res.StatusCode, time.Since(opStart))

	// Authorization denied is a session wide signal, not a per-call error
	if res.StatusCode == http.StatusForbidden {
		if authenticated {
			c.session.Expire(generation)
		} else {
			c.session.Invalidate()
		}
		return ErrAuthExpired
	}

	statusOk := false
	for _, s := range okStatuses {
		if res.StatusCode == s {
			statusOk = true
			break
		}
	}
	if !statusOk {
		return reqErr(res.StatusCode, serverMessage(raw), nil)
	}

	if resBody != nil {
		if err := json.Unmarshal(raw, resBody); err != nil {
			return reqErr(res.StatusCode, DefaultErrorMessage, fmt.Errorf("JSON unmarshal: %w", err))
		}
	}

	return nil
}

// urlFor joins the API origin with the request path keeping the trailing slash.
func (c *Client) urlFor(path string) string {
	return c.baseUrl.JoinPath(path).String()
}

// serverMessage extracts the server error message falling back to DefaultErrorMessage.
func serverMessage(raw []byte) string {
	msg := model.MessageResponse{}
	if err := json.Unmarshal(raw, &msg); err == nil && msg.Message != "" {
		return msg.Message
	}

	return DefaultErrorMessage
}

// NewClient creates a new Client object.
func NewClient(serverUrl string, sess *session.Session, timeout time.Duration) (*Client, error) {
	if sess == nil {
		return nil, fmt.Errorf("%s: nil", "session")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("%s: must be GT 0", "timeout")
	}

	baseUrl, err := url.Parse(strings.TrimSuffix(serverUrl, "/"))
	if err != nil {
		return nil, fmt.Errorf("%s: invalid: %w", "serverUrl", err)
	}
	if baseUrl.Scheme != "http" && baseUrl.Scheme != "https" {
		return nil, fmt.Errorf("%s: scheme must be http or https", "serverUrl")
	}
	if baseUrl.Host == "" {
		return nil, fmt.Errorf("%s: host: empty", "serverUrl")
	}

	return &Client{
		baseUrl: baseUrl,
		session: sess,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}
