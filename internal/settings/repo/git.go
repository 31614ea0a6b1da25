package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/revlist"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/utils/merkletrie"
)

const (
	DefaultRemoteName = "origin"
	DefaultBranch     = "master"
)

// Options configures the git-backed manager.
type Options struct {
	// RemoteName of the upstream. Defaults to origin.
	RemoteName string

	// Branch tracked for sync. Defaults to master.
	Branch string

	// Auth is the transport auth method used for fetch, pull and push.
	// Nil means anonymous access.
	Auth transport.AuthMethod

	// AuthorName and AuthorEmail sign sync commits.
	AuthorName  string
	AuthorEmail string
}

func (o *Options) applyDefaults() {
	if o.RemoteName == "" {
		o.RemoteName = DefaultRemoteName
	}
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	if o.AuthorName == "" {
		o.AuthorName = "settings-repository"
	}
	if o.AuthorEmail == "" {
		o.AuthorEmail = "settings-repository@localhost"
	}
}

// GitManager implements Manager over a go-git working copy.
type GitManager struct {
	dir  string
	repo *git.Repository
	opts Options
}

var _ Manager = (*GitManager)(nil)

// Open opens an existing working copy.
func Open(dir string, opts Options) (*GitManager, error) {
	opts.applyDefaults()
	r, err := git.PlainOpen(dir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", dir, err)
	}
	return &GitManager{dir: dir, repo: r, opts: opts}, nil
}

// Init creates a fresh working copy with no upstream.
func Init(dir string, opts Options) (*GitManager, error) {
	opts.applyDefaults()
	r, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init repository %s: %w", dir, err)
	}
	return &GitManager{dir: dir, repo: r, opts: opts}, nil
}

// Clone clones the upstream into dir and tracks it as the sync remote.
func Clone(ctx context.Context, dir, url string, opts Options) (*GitManager, error) {
	opts.applyDefaults()
	r, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:        url,
		RemoteName: opts.RemoteName,
		Auth:       opts.Auth,
	})
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", url, mapGitError(err))
	}
	return &GitManager{dir: dir, repo: r, opts: opts}, nil
}

// SetUpstream configures the sync remote, replacing any existing one.
func (g *GitManager) SetUpstream(url string) error {
	_ = g.repo.DeleteRemote(g.opts.RemoteName)
	_, err := g.repo.CreateRemote(&config.RemoteConfig{
		Name: g.opts.RemoteName,
		URLs: []string{url},
	})
	if err != nil {
		return fmt.Errorf("set upstream %s: %w", url, err)
	}
	return nil
}

// Dir returns the working copy root.
func (g *GitManager) Dir() string {
	return g.dir
}

func (g *GitManager) HasUpstream() bool {
	_, err := g.repo.Remote(g.opts.RemoteName)
	return err == nil
}

func (g *GitManager) Commit(ctx context.Context, tag string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("worktree: %w", err)
	}

	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("status: %w", err)
	}
	if status.IsClean() {
		return false, nil
	}

	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return false, fmt.Errorf("stage changes: %w", err)
	}

	hash, err := wt.Commit(g.commitMessage(tag), &git.CommitOptions{
		Author: g.signature(),
	})
	if err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}

	slog.Debug("committed local changes", "hash", hash.String(), "tag", tag)
	return true, nil
}

func (g *GitManager) Pull(ctx context.Context) (*UpdateResult, error) {
	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}

	before, err := g.headHash()
	if err != nil {
		return nil, err
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName: g.opts.RemoteName,
		Auth:       g.opts.Auth,
	})
	if err != nil {
		// An empty upstream has nothing to pull; the first push publishes.
		if errors.Is(err, git.NoErrAlreadyUpToDate) || errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return NewUpdateResult(), nil
		}
		return nil, fmt.Errorf("pull: %w", mapGitError(err))
	}

	after, err := g.headHash()
	if err != nil {
		return nil, err
	}
	return g.diffResult(before, after)
}

func (g *GitManager) Push(ctx context.Context) error {
	err := g.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: g.opts.RemoteName,
		Auth:       g.opts.Auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push: %w", mapGitError(err))
	}
	return nil
}

func (g *GitManager) ResetToRemote(ctx context.Context) (*UpdateResult, error) {
	if err := g.fetch(ctx); err != nil {
		return nil, err
	}

	remoteHash, err := g.remoteHash()
	if err != nil {
		return nil, err
	}
	if remoteHash.IsZero() {
		return nil, fmt.Errorf("%w: remote branch %s missing", ErrNoRemoteRepository, g.opts.Branch)
	}

	before, err := g.headHash()
	if err != nil {
		return nil, err
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Reset(&git.ResetOptions{Mode: git.HardReset, Commit: remoteHash}); err != nil {
		return nil, fmt.Errorf("hard reset to %s: %w", remoteHash, err)
	}

	return g.diffResult(before, remoteHash)
}

func (g *GitManager) ResetToLocal(ctx context.Context, initializer Initializer) (*UpdateResult, error) {
	result := NewUpdateResult()

	if initializer != nil {
		before, err := g.headHash()
		if err != nil {
			return nil, err
		}
		if err := initializer(ctx); err != nil {
			return nil, fmt.Errorf("local initializer: %w", err)
		}
		// Initializer output becomes part of the local state to publish.
		if _, err := g.Commit(ctx, "overwrite remote"); err != nil {
			return nil, err
		}
		after, err := g.headHash()
		if err != nil {
			return nil, err
		}
		seeded, err := g.diffResult(before, after)
		if err != nil {
			return nil, err
		}
		result.Merge(seeded)
	}

	if err := g.fetch(ctx); err != nil && !errors.Is(err, ErrNoRemoteRepository) && !errors.Is(err, ErrNoUpstream) {
		return nil, err
	}

	remoteHash, err := g.remoteHash()
	if err != nil {
		return nil, err
	}
	localHash, err := g.headHash()
	if err != nil {
		return nil, err
	}

	// If the remote diverged, graft it under the local head so that the local
	// tree wins and the subsequent push fast-forwards the remote.
	if !remoteHash.IsZero() && !localHash.IsZero() {
		ancestor, err := g.isAncestor(remoteHash, localHash)
		if err != nil {
			return nil, err
		}
		if !ancestor {
			wt, wtErr := g.repo.Worktree()
			if wtErr != nil {
				return nil, fmt.Errorf("worktree: %w", wtErr)
			}
			hash, commitErr := wt.Commit(g.commitMessage("overwrite remote"), &git.CommitOptions{
				Author:            g.signature(),
				Parents:           []plumbing.Hash{localHash, remoteHash},
				AllowEmptyCommits: true,
			})
			if commitErr != nil {
				return nil, fmt.Errorf("graft remote history: %w", commitErr)
			}
			slog.Debug("grafted remote history under local head", "hash", hash.String())
		}
	}

	return result, nil
}

func (g *GitManager) AheadCommitCount(ctx context.Context) (int, error) {
	localHash, err := g.headHash()
	if err != nil {
		return 0, err
	}
	if localHash.IsZero() {
		return 0, nil
	}

	var ignore []plumbing.Hash
	remoteHash, err := g.remoteHash()
	if err != nil {
		return 0, err
	}
	if !remoteHash.IsZero() {
		ignore = append(ignore, remoteHash)
	}

	hashes, err := revlist.Objects(g.repo.Storer, []plumbing.Hash{localHash}, ignore)
	if err != nil {
		return 0, fmt.Errorf("walk outgoing commits: %w", err)
	}

	count := 0
	for _, h := range hashes {
		if _, err := g.repo.CommitObject(h); err == nil {
			count++
		}
	}
	return count, nil
}

func (g *GitManager) fetch(ctx context.Context) error {
	err := g.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: g.opts.RemoteName,
		Auth:       g.opts.Auth,
	})
	// An empty upstream fetches nothing; the remote branch ref stays absent.
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) && !errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return fmt.Errorf("fetch: %w", mapGitError(err))
	}
	return nil
}

// headHash returns the current HEAD commit, or the zero hash for an unborn
// branch.
func (g *GitManager) headHash() (plumbing.Hash, error) {
	ref, err := g.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, fmt.Errorf("resolve HEAD: %w", err)
	}
	return ref.Hash(), nil
}

// remoteHash returns the tracked remote branch head, or the zero hash if the
// remote branch is unknown locally.
func (g *GitManager) remoteHash() (plumbing.Hash, error) {
	refName := plumbing.NewRemoteReferenceName(g.opts.RemoteName, g.opts.Branch)
	ref, err := g.repo.Reference(refName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return plumbing.ZeroHash, nil
		}
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", refName, err)
	}
	return ref.Hash(), nil
}

func (g *GitManager) isAncestor(older, newer plumbing.Hash) (bool, error) {
	olderCommit, err := g.repo.CommitObject(older)
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", older, err)
	}
	newerCommit, err := g.repo.CommitObject(newer)
	if err != nil {
		return false, fmt.Errorf("commit %s: %w", newer, err)
	}
	ok, err := olderCommit.IsAncestor(newerCommit)
	if err != nil {
		return false, fmt.Errorf("ancestry %s..%s: %w", older, newer, err)
	}
	return ok, nil
}

// diffResult computes the changed/deleted paths between two commits. A zero
// hash stands for the empty tree.
func (g *GitManager) diffResult(before, after plumbing.Hash) (*UpdateResult, error) {
	result := NewUpdateResult()
	if before == after {
		return result, nil
	}

	beforeTree, err := g.treeFor(before)
	if err != nil {
		return nil, err
	}
	afterTree, err := g.treeFor(after)
	if err != nil {
		return nil, err
	}

	switch {
	case beforeTree == nil && afterTree == nil:
		return result, nil
	case beforeTree == nil:
		err = afterTree.Files().ForEach(func(f *object.File) error {
			result.AddChanged(f.Name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk tree %s: %w", after, err)
		}
		return result, nil
	case afterTree == nil:
		err = beforeTree.Files().ForEach(func(f *object.File) error {
			result.AddDeleted(f.Name)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk tree %s: %w", before, err)
		}
		return result, nil
	}

	changes, err := object.DiffTree(beforeTree, afterTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", before, after, err)
	}
	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return nil, fmt.Errorf("change action: %w", err)
		}
		switch action {
		case merkletrie.Delete:
			result.AddDeleted(ch.From.Name)
		default:
			result.AddChanged(ch.To.Name)
		}
	}
	return result, nil
}

func (g *GitManager) treeFor(hash plumbing.Hash) (*object.Tree, error) {
	if hash.IsZero() {
		return nil, nil
	}
	commit, err := g.repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", hash, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree %s: %w", hash, err)
	}
	return tree, nil
}

func (g *GitManager) signature() *object.Signature {
	return &object.Signature{
		Name:  g.opts.AuthorName,
		Email: g.opts.AuthorEmail,
		When:  time.Now(),
	}
}

func (g *GitManager) commitMessage(tag string) string {
	return fmt.Sprintf("settings: %s", tag)
}
