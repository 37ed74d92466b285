package trigger

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jonathan/boot-release/internal/types"
)

// RepositoryError represents a failure reading the local checkout
type RepositoryError struct {
	Message string
	Cause   error
}

func (e *RepositoryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("repository error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("repository error: %s", e.Message)
}

func (e *RepositoryError) Unwrap() error {
	return e.Cause
}

// ResolveEvent builds a TriggerEvent from a local checkout.
// When reference is empty, the tag pointing at HEAD is used; if several tags
// point at HEAD the lexically greatest wins. If no tag points at HEAD the
// event carries the HEAD branch reference, which will not match.
func ResolveEvent(repoPath, reference string) (types.TriggerEvent, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return types.TriggerEvent{}, &RepositoryError{Message: fmt.Sprintf("failed to open %s", repoPath), Cause: err}
	}

	head, err := repo.Head()
	if err != nil {
		return types.TriggerEvent{}, &RepositoryError{Message: "failed to resolve HEAD", Cause: err}
	}

	snapshot := types.RepositorySnapshot{Path: repoPath}
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		snapshot.Owner, snapshot.Name = ParseRemoteURL(remote.Config().URLs[0])
	}

	if reference == "" {
		tag, err := tagAtCommit(repo, head.Hash())
		if err != nil {
			return types.TriggerEvent{}, err
		}
		if tag == "" {
			snapshot.CommitSHA = head.Hash().String()
			return types.TriggerEvent{Reference: head.Name().String(), Repository: snapshot}, nil
		}
		reference = types.TagRefPrefix + tag
	}

	commit, err := resolveCommit(repo, plumbing.ReferenceName(reference))
	if err != nil {
		// The reference may only exist on the remote (e.g. a webhook for a tag
		// not yet fetched). Fall back to HEAD.
		commit = head.Hash()
	}
	snapshot.CommitSHA = commit.String()

	return types.TriggerEvent{Reference: reference, Repository: snapshot}, nil
}

// tagAtCommit returns the name of the tag pointing at commit, or "" if none
func tagAtCommit(repo *git.Repository, commit plumbing.Hash) (string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return "", &RepositoryError{Message: "failed to list tags", Cause: err}
	}
	defer iter.Close()

	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target, err := peelTag(repo, ref)
		if err != nil {
			return nil // skip tags pointing at non-commits
		}
		if target == commit {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return "", &RepositoryError{Message: "failed to walk tags", Cause: err}
	}

	if len(names) == 0 {
		return "", nil
	}
	sort.Strings(names)
	return names[len(names)-1], nil
}

func resolveCommit(repo *git.Repository, name plumbing.ReferenceName) (plumbing.Hash, error) {
	ref, err := repo.Reference(name, true)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return peelTag(repo, ref)
}

// peelTag returns the commit a tag reference points at, following annotated tag objects
func peelTag(repo *git.Repository, ref *plumbing.Reference) (plumbing.Hash, error) {
	tagObj, err := repo.TagObject(ref.Hash())
	switch {
	case err == nil:
		c, err := tagObj.Commit()
		if err != nil {
			return plumbing.ZeroHash, err
		}
		return c.Hash, nil
	case errors.Is(err, plumbing.ErrObjectNotFound):
		// lightweight tag
		return ref.Hash(), nil
	default:
		if c, cerr := repo.CommitObject(ref.Hash()); cerr == nil {
			return c.Hash, nil
		}
		return plumbing.ZeroHash, err
	}
}

// ParseRemoteURL extracts owner and repository name from a git remote URL.
// Both scp-style (git@host:owner/name.git) and URL forms are supported.
func ParseRemoteURL(raw string) (owner, name string) {
	var p string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", ""
		}
		p = u.Path
	} else if i := strings.Index(raw, ":"); i >= 0 {
		p = raw[i+1:]
	} else {
		return "", ""
	}

	p = strings.TrimSuffix(strings.Trim(p, "/"), ".git")
	parts := strings.Split(p, "/")
	if len(parts) < 2 {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
