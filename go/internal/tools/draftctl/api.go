package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/mcdev12/draftroom/go/clients"
)

// apiClient calls the draftroom HTTP API.
type apiClient struct {
	*clients.BaseClient
}

func newAPIClient(opts *globalOpts) *apiClient {
	base := clients.NewBaseClient(opts.server + "/api")
	if opts.token != "" {
		base.SetHeader("Authorization", "Bearer "+opts.token)
	}
	base.SetHeader("Content-Type", "application/json")
	return &apiClient{BaseClient: base}
}

// do sends in as JSON (when non-nil) and decodes the response into out (when non-nil).
func (c *apiClient) do(ctx context.Context, method, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	resp, err := c.MakeRequest(ctx, method, endpoint, body)
	if err != nil {
		return apiError(err)
	}
	if out == nil || len(resp) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// apiError turns the server's {"error","code"} body into a readable error.
func apiError(err error) error {
	var se *clients.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if json.Unmarshal([]byte(se.Body), &body) != nil || body.Code == "" {
		return err
	}
	return fmt.Errorf("%s (%s, HTTP %d)", body.Error, body.Code, se.StatusCode)
}

func (c *apiClient) get(ctx context.Context, endpoint string, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, nil, out)
}
