package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/go-github/v66/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/types"
)

// GitHubConfig identifies the repository releases are published to
type GitHubConfig struct {
	Owner string
	Repo  string
	Token string
	// BaseURL and UploadURL point at a GitHub Enterprise instance; leave empty for github.com
	BaseURL   string
	UploadURL string
}

// GitHubPublisher publishes releases through the GitHub REST API
type GitHubPublisher struct {
	client *github.Client
	owner  string
	repo   string
	log    logging.ContextLogger
}

// NewGitHubPublisher creates a publisher for owner/repo
func NewGitHubPublisher(ctx context.Context, cfg GitHubConfig, logger *logrus.Logger) (*GitHubPublisher, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github publisher requires owner and repo (got %q/%q)", cfg.Owner, cfg.Repo)
	}

	var httpClient *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	client := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		upload := cfg.UploadURL
		if upload == "" {
			upload = cfg.BaseURL
		}
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, upload)
		if err != nil {
			return nil, fmt.Errorf("invalid github enterprise url: %w", err)
		}
	}

	return &GitHubPublisher{
		client: client,
		owner:  cfg.Owner,
		repo:   cfg.Repo,
		log:    logging.NewContextLogger(logger, "release").InStruct("GitHubPublisher"),
	}, nil
}

// CreateRelease implements Publisher. A release that already exists for the
// tag is reported as a *CreateReleaseError with Exists set.
func (p *GitHubPublisher) CreateRelease(ctx context.Context, req ReleaseRequest) (*types.ReleaseRecord, error) {
	existing, resp, err := p.client.Repositories.GetReleaseByTag(ctx, p.owner, p.repo, req.Tag)
	switch {
	case err == nil:
		return nil, &CreateReleaseError{
			Tag:     req.Tag,
			Message: fmt.Sprintf("release already exists (id %d)", existing.GetID()),
			Exists:  true,
		}
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		// expected
	default:
		return nil, &CreateReleaseError{Tag: req.Tag, Message: "failed to look up existing release", Cause: err}
	}

	rel := &github.RepositoryRelease{
		TagName:    github.String(req.Tag),
		Name:       github.String(req.Title),
		Draft:      github.Bool(req.Draft),
		Prerelease: github.Bool(req.Prerelease),
	}
	if req.CommitSHA != "" {
		rel.TargetCommitish = github.String(req.CommitSHA)
	}

	created, resp, err := p.client.Repositories.CreateRelease(ctx, p.owner, p.repo, rel)
	if err != nil {
		cre := &CreateReleaseError{Tag: req.Tag, Message: "failed to create release", Cause: err}
		var ghErr *github.ErrorResponse
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity && errors.As(err, &ghErr) {
			for _, e := range ghErr.Errors {
				if e.Code == "already_exists" {
					cre.Exists = true
					cre.Message = "release already exists"
				}
			}
		}
		return nil, cre
	}

	p.log.InFunc("CreateRelease").WithField("release_id", created.GetID()).Debug("Created GitHub release")
	return &types.ReleaseRecord{
		ID:         created.GetID(),
		Tag:        created.GetTagName(),
		Title:      created.GetName(),
		Draft:      created.GetDraft(),
		Prerelease: created.GetPrerelease(),
		URL:        created.GetHTMLURL(),
	}, nil
}

// UploadAsset implements Publisher
func (p *GitHubPublisher) UploadAsset(ctx context.Context, record *types.ReleaseRecord, key string, data []byte) error {
	// The upload API wants an *os.File to size and stream the body
	f, err := os.CreateTemp("", "release-asset-*")
	if err != nil {
		return fmt.Errorf("failed to stage %s for upload: %w", key, err)
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(f.Name())
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to stage %s for upload: %w", key, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to rewind %s: %w", key, err)
	}

	opts := &github.UploadOptions{Name: key, MediaType: mimetype.Detect(data).String()}
	asset, _, err := p.client.Repositories.UploadReleaseAsset(ctx, p.owner, p.repo, record.ID, opts, f)
	if err != nil {
		return err
	}

	p.log.InFunc("UploadAsset").WithFields(logrus.Fields{
		"asset_id": asset.GetID(),
		"artifact": key,
	}).Debug("Uploaded release asset")
	return nil
}
