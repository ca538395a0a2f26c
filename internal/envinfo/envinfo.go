// Package envinfo describes the machine and checkout a report was produced on.
package envinfo

import (
	"os"
	"runtime"

	"github.com/go-git/go-git/v5"
	"github.com/go-logr/logr"

	"github.com/marcohefti/docseal/internal/schema"
)

// Capture never fails. Git details are filled in only when dir sits inside a
// readable repository with at least one commit.
func Capture(dir string, log logr.Logger) schema.Environment {
	env := schema.Environment{
		OS:        runtime.GOOS,
		PSVersion: runtime.Version(),
	}
	if h, err := os.Hostname(); err == nil {
		env.Hostname = h
	}

	if dir == "" {
		return env
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		log.V(1).Info("no git repository", "dir", dir, "reason", err.Error())
		return env
	}
	head, err := repo.Head()
	if err != nil {
		log.V(1).Info("git HEAD unavailable", "dir", dir, "reason", err.Error())
		return env
	}
	env.GitCommit = head.Hash().String()
	if head.Name().IsBranch() {
		env.GitBranch = head.Name().Short()
	}
	return env
}
