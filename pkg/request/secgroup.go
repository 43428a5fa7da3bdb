// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package request

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/facebookincubator/farmcli/pkg/api"
	"github.com/facebookincubator/farmcli/pkg/cerrors"
	"github.com/facebookincubator/farmcli/pkg/options"
)

// securityGroupRulePattern is the PROTOCOL:CIDR:PORT grammar. PORT is a
// single port, a min-max range, or -1 for all ports.
var securityGroupRulePattern = regexp.MustCompile(`^(tcp|ip|icmp|udp|-1|[0-255]):(.*):(\d{1,5}-\d{1,5}|\d{1,5}|-1)$`)

// ParseSecurityGroupRules parses ingress and egress rule options into
// their request form. Values can be comma separated.
func ParseSecurityGroupRules(ingress, egress []string) ([]api.SecurityGroupRule, []api.SecurityGroupRule, error) {
	ingressRules, err := parseRules("ingress", ingress)
	if err != nil {
		return nil, nil, err
	}
	egressRules, err := parseRules("egress", egress)
	if err != nil {
		return nil, nil, err
	}
	return ingressRules, egressRules, nil
}

func parseRules(ruleType string, raw []string) ([]api.SecurityGroupRule, error) {
	var rules []api.SecurityGroupRule
	for _, token := range options.NormalizeMultiString(raw, ",") {
		match := securityGroupRulePattern.FindStringSubmatch(token)
		if match == nil {
			return nil, cerrors.Newf("bad format of security group rule '%s', should be PROTOCOL:CIDR:PORT", token)
		}
		protocol, cidr, port := match[1], match[2], match[3]

		normalized, err := normalizeCIDR(cidr)
		if err != nil {
			return nil, cerrors.Newf("CIDR %s has incorrect format: %v", cidr, err)
		}

		portMin, portMax := parsePortRange(port)
		rules = append(rules, api.SecurityGroupRule{
			Type:     ruleType,
			Protocol: protocol,
			CIDR:     normalized,
			PortMin:  portMin,
			PortMax:  portMax,
		})
	}
	return rules, nil
}

// normalizeCIDR turns a bare address into a single-host network and
// rejects prefixes with host bits set.
func normalizeCIDR(cidr string) (string, error) {
	if !strings.Contains(cidr, "/") {
		addr, err := netip.ParseAddr(cidr)
		if err != nil {
			return "", err
		}
		return netip.PrefixFrom(addr, addr.BitLen()).String(), nil
	}

	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return "", err
	}
	if prefix.Masked() != prefix {
		return "", fmt.Errorf("%s has host bits set", cidr)
	}
	return prefix.String(), nil
}

// parsePortRange expands -1 to the full range and single ports to a
// degenerate one. The pattern guarantees numeric tokens.
func parsePortRange(port string) (int, int) {
	if port == "-1" {
		return 0, 65535
	}
	low, high, found := strings.Cut(port, "-")
	if !found {
		high = low
	}
	portMin, _ := strconv.Atoi(low)
	portMax, _ := strconv.Atoi(high)
	return portMin, portMax
}

// LocalhostIngressRule opens all traffic from the given workstation
// address to the reserved guest.
func LocalhostIngressRule(workstationIP string) string {
	return fmt.Sprintf("-1:%s:-1", workstationIP)
}
