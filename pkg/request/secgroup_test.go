// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/api"
)

func TestParseSecurityGroupRuleSinglePort(t *testing.T) {
	ingress, egress, err := ParseSecurityGroupRules([]string{"tcp:10.0.0.5:22"}, nil)
	require.NoError(t, err)
	require.Empty(t, egress)
	require.Equal(t, []api.SecurityGroupRule{{
		Type:     "ingress",
		Protocol: "tcp",
		CIDR:     "10.0.0.5/32",
		PortMin:  22,
		PortMax:  22,
	}}, ingress)
}

func TestParseSecurityGroupRuleAllPorts(t *testing.T) {
	_, egress, err := ParseSecurityGroupRules(nil, []string{"-1:10.0.0.0/24:-1"})
	require.NoError(t, err)
	require.Equal(t, []api.SecurityGroupRule{{
		Type:     "egress",
		Protocol: "-1",
		CIDR:     "10.0.0.0/24",
		PortMin:  0,
		PortMax:  65535,
	}}, egress)
}

func TestParseSecurityGroupRulePortRange(t *testing.T) {
	ingress, _, err := ParseSecurityGroupRules([]string{"udp:192.0.2.0/24:8000-8080"}, nil)
	require.NoError(t, err)
	require.Equal(t, 8000, ingress[0].PortMin)
	require.Equal(t, 8080, ingress[0].PortMax)
}

func TestParseSecurityGroupRuleCommaSeparated(t *testing.T) {
	ingress, _, err := ParseSecurityGroupRules([]string{"tcp:10.0.0.5:22, tcp:10.0.0.6:443"}, nil)
	require.NoError(t, err)
	require.Len(t, ingress, 2)
	require.Equal(t, "10.0.0.6/32", ingress[1].CIDR)
}

func TestParseSecurityGroupRuleBadFormat(t *testing.T) {
	for _, rule := range []string{"tcp:10.0.0.5", "gopher:10.0.0.5:22", "tcp:10.0.0.5:port"} {
		_, _, err := ParseSecurityGroupRules([]string{rule}, nil)
		require.ErrorContains(t, err, "bad format", rule)
	}
}

func TestParseSecurityGroupRuleBadCIDR(t *testing.T) {
	// host bits set
	_, _, err := ParseSecurityGroupRules([]string{"tcp:10.0.0.1/24:22"}, nil)
	require.ErrorContains(t, err, "incorrect format")

	_, _, err = ParseSecurityGroupRules([]string{"tcp:not-an-address:22"}, nil)
	require.ErrorContains(t, err, "incorrect format")
}

func TestLocalhostIngressRule(t *testing.T) {
	require.Equal(t, "-1:203.0.113.7:-1", LocalhostIngressRule("203.0.113.7"))
}

func TestSSHRemoteRewrite(t *testing.T) {
	tests := map[string]string{
		"git@github.com:containers/podman.git":            "https://github.com/containers/podman.git",
		"git+ssh://git@gitlab.com/spoore/centos_rpms_jq.git": "https://gitlab.com/spoore/centos_rpms_jq.git",
		"ssh://git@pagure.io/fedora-ci/messages.git":      "https://pagure.io/fedora-ci/messages.git",
		"https://gitlab.com/testing-farm/cli.git":         "https://gitlab.com/testing-farm/cli.git",
	}
	for remote, expected := range tests {
		require.Equal(t, expected, sshRemotePattern.ReplaceAllString(remote, "https://$1/$2"), remote)
	}
}
