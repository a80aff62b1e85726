package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const deviceCodeGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// tokenResponse covers both the success and the error shape of the token
// endpoint. GitHub answers 200 with an error field; RFC 8628 servers answer
// 400 with the same fields.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Scope            string `json:"scope"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Interval         int64  `json:"interval"`
}

// requestToken performs one poll of the token endpoint. A returned error is
// transient; provider verdicts come back in tokenResponse.Error.
func (a *Authenticator) requestToken(ctx context.Context, deviceCode string) (*tokenResponse, error) {
	form := url.Values{
		"client_id":   {a.opts.ClientID},
		"device_code": {deviceCode},
		"grant_type":  {deviceCodeGrantType},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("token endpoint returned %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if tr.Error == "" && tr.AccessToken == "" {
		return nil, fmt.Errorf("token endpoint returned %s without a token", resp.Status)
	}
	return &tr, nil
}
