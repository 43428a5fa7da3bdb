// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"encoding/base64"
	"strconv"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

// AuthorizedKeysSecret carries the base64 encoded public keys installed
// on the reserved guest.
const AuthorizedKeysSecret = "TF_RESERVATION_AUTHORIZED_KEYS_BASE64"

// ReservationDurationVariable tells the reservation test how long to
// hold the guest, in minutes.
const ReservationDurationVariable = "TF_RESERVATION_DURATION"

// AddReservation injects the reservation test into an environment: the
// authorized keys secret, the duration variable, the security group
// rules and the tmt discover argument pulling the reservation plan in.
func (b *Builder) AddReservation(
	environment *api.Environment,
	authorizedKeys string,
	ingress, egress []api.SecurityGroupRule,
	duration int,
) error {
	if authorizedKeys == "" {
		return cerrors.Newf("no public SSH keys found, cannot continue")
	}

	if environment.Secrets == nil {
		environment.Secrets = map[string]string{}
	}
	environment.Secrets[AuthorizedKeysSecret] = base64.StdEncoding.EncodeToString([]byte(authorizedKeys))

	provisioning := environment.EnsureProvisioning()
	if len(ingress) > 0 {
		provisioning.SecurityGroupRulesIngress = append(provisioning.SecurityGroupRulesIngress, ingress...)
	}
	if len(egress) > 0 {
		provisioning.SecurityGroupRulesEgress = append(provisioning.SecurityGroupRulesEgress, egress...)
	}

	if environment.Variables == nil {
		environment.Variables = map[string]string{}
	}
	environment.Variables[ReservationDurationVariable] = strconv.Itoa(duration)

	tmt := environment.EnsureTMT()
	if tmt.ExtraArgs == nil {
		tmt.ExtraArgs = &api.TMTExtraArgs{}
	}

	discoverArgs := b.cfg.ReserveDiscoverArgs()
	for _, arg := range tmt.ExtraArgs.Discover {
		if arg == discoverArgs {
			return nil
		}
	}
	tmt.ExtraArgs.Discover = append(tmt.ExtraArgs.Discover, discoverArgs)
	return nil
}
