package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/go-github/v67/github"

	"github.com/namespacelabs/nscloud-checkout-action/errors"
)

// DefaultAPIURL is the public GitHub API endpoint.
const DefaultAPIURL = "https://api.github.com"

// Client wraps a go-github client.
type Client struct {
	client *github.Client
}

type config struct {
	client     *github.Client
	httpClient *http.Client
	token      string
	apiURL     string
}

// Option configures NewClient.
type Option func(*config) error

// WithToken authenticates requests with token. An empty token leaves the
// client unauthenticated, which works for public repositories.
func WithToken(token string) Option {
	return func(cfg *config) error {
		cfg.token = token
		return nil
	}
}

// WithAPIURL points the client at a GitHub Enterprise Server API.
func WithAPIURL(apiURL string) Option {
	return func(cfg *config) error {
		if strings.TrimSpace(apiURL) == "" {
			err := errors.New(errors.CodeInvalidInput, "API URL cannot be empty")
			return errors.WithContext(err, "field", "apiURL")
		}
		cfg.apiURL = apiURL
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(cfg *config) error {
		cfg.httpClient = httpClient
		return nil
	}
}

// WithClient uses a preconfigured go-github client. Token, URL and HTTP
// client options are ignored when it is set.
func WithClient(client *github.Client) Option {
	return func(cfg *config) error {
		if client == nil {
			err := errors.New(errors.CodeInvalidInput, "client cannot be nil")
			return errors.WithContext(err, "field", "client")
		}
		cfg.client = client
		return nil
	}
}

// NewClient returns a Client.
func NewClient(opts ...Option) (*Client, error) {
	cfg := &config{apiURL: DefaultAPIURL}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.client != nil {
		return &Client{client: cfg.client}, nil
	}

	client := github.NewClient(cfg.httpClient)
	if cfg.token != "" {
		client = client.WithAuthToken(cfg.token)
	}

	if strings.TrimSuffix(cfg.apiURL, "/") != DefaultAPIURL {
		baseURL, err := client.BaseURL.Parse(strings.TrimSuffix(cfg.apiURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidInput, "invalid API URL %q", cfg.apiURL)
		}
		client.BaseURL = baseURL
	}

	return &Client{client: client}, nil
}

// DefaultBranch returns the name of the default branch of owner/repo, e.g.
// "main".
func (c *Client) DefaultBranch(ctx context.Context, owner, repo string) (string, error) {
	r, resp, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return "", errors.WithContext(wrapError(err, resp, "failed to get repository"), "repository", owner+"/"+repo)
	}

	branch := r.GetDefaultBranch()
	if branch == "" {
		err := errors.Newf(errors.CodeNotFound, "repository %s/%s reports no default branch", owner, repo)
		return "", err
	}
	return branch, nil
}
