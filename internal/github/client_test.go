package github_test

import (
	"context"
	"testing"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/require"

	"revbridge.dev/revbridge/internal/github"
	"revbridge.dev/revbridge/testhelpers"
)

func TestProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("public email", func(t *testing.T) {
		cfg := testhelpers.NewMockProviderConfig()
		cfg.ValidTokens["gho_ok"] = &gh.User{
			Login:     gh.String("octocat"),
			Name:      gh.String("The Octocat"),
			AvatarURL: gh.String("https://avatars.example.invalid/u/1"),
			Email:     gh.String("octocat@example.invalid"),
		}
		provider := testhelpers.NewMockProvider(t, cfg)

		client, err := github.NewClient(ctx, provider.Server.Client(), "gho_ok", provider.APIBaseURL())
		require.NoError(t, err)
		profile, err := client.Profile(ctx)
		require.NoError(t, err)
		require.Equal(t, &github.Profile{
			Login:     "octocat",
			Name:      "The Octocat",
			AvatarURL: "https://avatars.example.invalid/u/1",
			Email:     "octocat@example.invalid",
		}, profile)
	})

	t.Run("falls back to the primary verified email", func(t *testing.T) {
		cfg := testhelpers.NewMockProviderConfig()
		cfg.ValidTokens["gho_ok"] = &gh.User{Login: gh.String("octocat")}
		cfg.Emails = []*gh.UserEmail{
			{Email: gh.String("old@example.invalid"), Primary: gh.Bool(false), Verified: gh.Bool(true)},
			{Email: gh.String("unverified@example.invalid"), Primary: gh.Bool(true), Verified: gh.Bool(false)},
			{Email: gh.String("main@example.invalid"), Primary: gh.Bool(true), Verified: gh.Bool(true)},
		}
		provider := testhelpers.NewMockProvider(t, cfg)

		client, err := github.NewClient(ctx, nil, "gho_ok", provider.APIBaseURL())
		require.NoError(t, err)
		profile, err := client.Profile(ctx)
		require.NoError(t, err)
		require.Equal(t, "main@example.invalid", profile.Email)
	})

	t.Run("rejected token", func(t *testing.T) {
		provider := testhelpers.NewMockProvider(t, nil)

		client, err := github.NewClient(ctx, nil, "gho_revoked", provider.APIBaseURL())
		require.NoError(t, err)
		_, err = client.Profile(ctx)
		require.Error(t, err)
	})

	t.Run("empty token", func(t *testing.T) {
		_, err := github.NewClient(ctx, nil, "", "")
		require.Error(t, err)
	})
}
