// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/config"
	"github.com/facebookincubator/farmcli/pkg/listing"
	thttp "github.com/facebookincubator/farmcli/pkg/transport/http"
)

func cancelVerb(ctx context.Context, cfg *config.Settings, args []string, stdout io.Writer) error {
	flagSet := newFlagSet("cancel")
	if help, err := parseFlags(flagSet, args); help || err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return cerrors.Newf("expected exactly one request ID to cancel, see --help")
	}

	id, err := listing.ExtractUUID(flagSet.Arg(0))
	if err != nil {
		return err
	}
	if err := requireToken(cfg); err != nil {
		return err
	}

	err = newClient(cfg).Cancel(ctx, id)
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "✅ Request cancellation requested. It will be canceled soon.")
		return nil
	case errors.Is(err, thttp.ErrAlreadyCanceled):
		return cerrors.Newf("request was already canceled")
	case errors.Is(err, thttp.ErrAlreadyFinished):
		return cerrors.Newf("request cannot be canceled, it is already finished")
	}

	var notFound *cerrors.NotFoundError
	if errors.As(err, &notFound) {
		return cerrors.Newf("request was not found, verify the request ID is correct")
	}
	return err
}
