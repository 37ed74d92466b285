package release

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/boot-release/internal/artifact"
	"github.com/jonathan/boot-release/internal/logging"
	"github.com/jonathan/boot-release/internal/types"
)

// DefaultTitleTemplate names a release after its tag
const DefaultTitleTemplate = "{{.Tag}}"

// ReleaseRequest carries the fields of the release to create
//
//nolint:revive // release.ReleaseRequest reads better at call sites than release.Request
type ReleaseRequest struct {
	Tag        string
	Title      string
	Draft      bool
	Prerelease bool
	CommitSHA  string // Optional target commit for the tag
}

// Publisher is the external release service boundary
type Publisher interface {
	CreateRelease(ctx context.Context, req ReleaseRequest) (*types.ReleaseRecord, error)
	UploadAsset(ctx context.Context, record *types.ReleaseRecord, key string, data []byte) error
}

// Report is the outcome of a publish attempt
type Report struct {
	Release  *types.ReleaseRecord
	Uploaded []string
	Failures []*UploadError
}

// RenderTitle fills the title template. Templates see .Tag and .Version
// (the tag with a leading "v" removed).
func RenderTitle(tmpl, tag string) (string, error) {
	if tmpl == "" {
		tmpl = DefaultTitleTemplate
	}
	t, err := template.New("title").Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return "", fmt.Errorf("invalid title template %q: %w", tmpl, err)
	}

	var sb strings.Builder
	data := struct {
		Tag     string
		Version string
	}{Tag: tag, Version: strings.TrimPrefix(tag, "v")}
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("failed to render title: %w", err)
	}
	return sb.String(), nil
}

// Publish creates the release and uploads every artifact in the store to it.
// A create failure aborts before any upload. Upload failures don't stop the
// remaining uploads and are never rolled back; they are returned as a
// *PartialPublishError alongside a report of what did get attached.
func Publish(ctx context.Context, pub Publisher, store artifact.Store, req ReleaseRequest, logger *logrus.Logger) (*Report, error) {
	log := logging.NewContextLogger(logger, "release").InFunc("Publish").WithField("tag", req.Tag)

	record, err := pub.CreateRelease(ctx, req)
	if err != nil {
		var cre *CreateReleaseError
		if !errors.As(err, &cre) {
			err = &CreateReleaseError{Tag: req.Tag, Message: "release service error", Cause: err}
		}
		log.WithError(err).Error("Release creation failed; no artifacts uploaded")
		return nil, err
	}
	log.WithField("release_id", record.ID).Info("Release created")

	report := &Report{Release: record}

	artifacts, err := store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list artifacts for release %s: %w", req.Tag, err)
	}

	for _, a := range artifacts {
		if err := pub.UploadAsset(ctx, record, a.Key, a.Data); err != nil {
			uploadErr := &UploadError{Key: a.Key, Cause: err}
			report.Failures = append(report.Failures, uploadErr)
			log.WithField("artifact", a.Key).WithError(err).Error("Upload failed")
			continue
		}
		record.Attach(a.Key)
		report.Uploaded = append(report.Uploaded, a.Key)
		log.WithFields(logrus.Fields{"artifact": a.Key, "bytes": a.Size}).Info("Artifact attached")
	}

	if len(report.Failures) > 0 {
		return report, &PartialPublishError{Release: record, Uploaded: report.Uploaded, Failures: report.Failures}
	}
	return report, nil
}
