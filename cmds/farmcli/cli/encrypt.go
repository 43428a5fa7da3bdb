// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/request"
)

func encryptVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("encrypt")

	gitURL := flagSet.String("git-url", "", "Git repository the secret is tied to, autodetected from the current directory")
	tokenID := flagSet.String("token-id", "", "Tie the secret to a specific token ID instead of your token")

	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return cerrors.Newf("expected exactly one message to encrypt, see --help")
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	url := *gitURL
	if url == "" {
		if !request.GitAvailable() {
			return cerrors.Newf("no git url defined")
		}
		detected, err := request.DetectGitURL()
		if err != nil {
			return err
		}
		url = detected
	}

	// the secret goes to stdout so it can be piped, everything else is
	// informational
	fmt.Fprintf(os.Stderr, "🔒 Encrypting secret for %s\n", url)
	fmt.Fprintf(os.Stderr, "📖 See %s for documentation on using encrypted secrets\n", cfg.OnboardingDocs)

	secret, err := newClient(cfg).Encrypt(ctx, &api.EncryptPayload{
		URL:     url,
		Message: flagSet.Arg(0),
		TokenID: *tokenID,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, secret)
	return nil
}
