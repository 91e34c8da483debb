package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// SyncGit ensures the rule pack named name is present under cacheDir,
// cloning it if absent and pulling from origin otherwise; when ref is
// non-empty it then checks ref out, first as a branch name and then as
// a commit hash. It records the result in the cache's manifest.
func SyncGit(ctx context.Context, cacheDir, name, url, ref string) (string, error) {
	ms := newManifestStore(cacheDir)
	if err := ms.load(); err != nil {
		return "", fmt.Errorf("rules: loading manifest: %w", err)
	}

	dest := filepath.Join(cacheDir, name)

	repo, err := git.PlainOpen(dest)
	if err != nil {
		repo, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:   url,
			Depth: 1,
		})
		if err != nil {
			return "", fmt.Errorf("rules: cloning %s: %w", url, err)
		}
	} else {
		wt, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("rules: opening worktree for %s: %w", name, err)
		}
		if err := wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"}); err != nil &&
			err != git.NoErrAlreadyUpToDate {
			return "", fmt.Errorf("rules: pulling %s: %w", name, err)
		}
	}

	if ref != "" {
		wt, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("rules: opening worktree for %s: %w", name, err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{
			Hash:  plumbing.ZeroHash,
			Branch: plumbing.NewBranchReferenceName(ref),
		}); err != nil {
			if checkoutErr := wt.Checkout(&git.CheckoutOptions{
				Hash: plumbing.NewHash(ref),
			}); checkoutErr != nil {
				return "", fmt.Errorf("rules: checking out %s@%s: %w", name, ref, err)
			}
		}
	}

	ms.set(name, &ManifestEntry{
		Source:      url,
		Ref:         ref,
		Dir:         dest,
		InstalledAt: time.Now().UTC(),
	})
	if err := ms.save(); err != nil {
		return "", fmt.Errorf("rules: saving manifest: %w", err)
	}

	return dest, nil
}

// Remove deletes a rule pack's local checkout and its manifest entry.
func Remove(cacheDir, name string) error {
	ms := newManifestStore(cacheDir)
	if err := ms.load(); err != nil {
		return fmt.Errorf("rules: loading manifest: %w", err)
	}

	entry := ms.get(name)
	if entry == nil {
		return nil
	}
	if err := os.RemoveAll(entry.Dir); err != nil {
		return fmt.Errorf("rules: removing %s: %w", name, err)
	}

	ms.mu.Lock()
	delete(ms.data.Packs, name)
	ms.mu.Unlock()

	return ms.save()
}
