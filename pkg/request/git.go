// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

// sshRemotePattern matches the ssh remote formats git produces:
//
//	git@github.com:containers/podman.git
//	git+ssh://git@gitlab.com/spoore/centos_rpms_jq.git
//	ssh://git@pagure.io/fedora-ci/messages.git
var sshRemotePattern = regexp.MustCompile(`^(?:(?:git\+)?ssh://)?git@([^:/]*)[:/](.*)`)

// GitAvailable reports whether a git binary is on PATH.
func GitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

func gitOutput(errMsg string, args ...string) (string, error) {
	out, err := exec.Command("git", args...).Output()
	if err != nil {
		return "", cerrors.Newf("%s", errMsg)
	}
	return strings.TrimSpace(string(out)), nil
}

// DetectGitURL resolves the origin remote of the current repository,
// rewritten to https. The service clones anonymously, ssh remotes would
// not work.
func DetectGitURL() (string, error) {
	url, err := gitOutput("could not auto-detect git url", "remote", "get-url", "origin")
	if err != nil {
		return "", err
	}
	return sshRemotePattern.ReplaceAllString(url, "https://$1/$2"), nil
}

// DetectGitRef resolves the checked out branch, falling back to the
// commit hash on a detached HEAD.
func DetectGitRef() (string, error) {
	ref, err := gitOutput("could not autodetect git ref", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if ref == "HEAD" {
		return gitOutput("could not autodetect git ref", "rev-parse", "HEAD")
	}
	return ref, nil
}

// CheckUncommittedChanges refuses to continue on a dirty work tree. The
// service tests the pushed repository, local changes would silently not
// be part of the run. Outside a repository the check passes, the url
// detection fails later with a clearer message.
func CheckUncommittedChanges() error {
	out, err := exec.Command("git", "update-index", "--refresh").CombinedOutput()
	if err == nil {
		out, err = exec.Command("git", "diff-index", "--quiet", "HEAD", "--").CombinedOutput()
	}
	if err != nil && !strings.Contains(string(out), "fatal:") {
		return cerrors.Newf(
			"uncommitted changes found in current git repository, refusing to continue.\n" +
				"   HINT: When running tests for the current repository, the changes must be committed and pushed")
	}
	return nil
}

// DetectTestType guesses the test type from the repository layout: fmf
// metadata wins, an STI playbook directory comes second.
func DetectTestType(tmtPath string) (string, error) {
	if _, err := os.Stat(filepath.Join(tmtPath, ".fmf/version")); err == nil {
		return TestTypeFMF, nil
	}
	if _, err := os.Stat("tests/tests.yml"); err == nil {
		return TestTypeSTI, nil
	}
	return "", cerrors.Newf("no test type defined")
}
