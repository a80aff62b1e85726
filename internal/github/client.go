// Package github provides a client for the GitHub REST API calls revbridge
// makes on behalf of the signed-in user.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// Profile contains the account details shown for a session.
// This is a simplified struct to avoid coupling to go-github library
type Profile struct {
	Login     string
	Name      string
	AvatarURL string
	Email     string
}

// Client is an interface for GitHub API interactions
type Client interface {
	// Profile returns the account the token belongs to
	Profile(ctx context.Context) (*Profile, error)
}

// RESTClient implements Client against the REST API.
type RESTClient struct {
	client *github.Client
}

// NewClient creates a client that authenticates every request with token.
// An empty baseURL means api.github.com; httpClient may be nil.
func NewClient(ctx context.Context, httpClient *http.Client, token, baseURL string) (*RESTClient, error) {
	if token == "" {
		return nil, errors.New("no access token")
	}
	if httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	}
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		parsed, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse API base URL %s: %w", baseURL, err)
		}
		client.BaseURL = parsed
	}
	return &RESTClient{client: client}, nil
}

// Profile reads the authenticated user. When the profile hides the email,
// the primary verified address is used instead; failing to list addresses
// leaves Email empty.
func (c *RESTClient) Profile(ctx context.Context) (*Profile, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return nil, err
	}
	profile := &Profile{
		Login:     user.GetLogin(),
		Name:      user.GetName(),
		AvatarURL: user.GetAvatarURL(),
		Email:     user.GetEmail(),
	}
	if profile.Login == "" {
		return nil, errors.New("profile has no login")
	}
	if profile.Email == "" {
		profile.Email = c.primaryEmail(ctx)
	}
	return profile, nil
}

func (c *RESTClient) primaryEmail(ctx context.Context) string {
	emails, _, err := c.client.Users.ListEmails(ctx, nil)
	if err != nil {
		return ""
	}
	for _, e := range emails {
		if e.GetPrimary() && e.GetVerified() {
			return e.GetEmail()
		}
	}
	return ""
}
