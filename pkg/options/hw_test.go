// Copyright (c) Facebook, Inc. and its affiliates.
//
// This source code is licensed under the MIT license found in the
// LICENSE file in the root directory of this source tree.

package options

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebookincubator/farmcli/pkg/cerrors"
)

func TestHWConstraintsSiblingsMerge(t *testing.T) {
	constraints, err := HWConstraints([]string{"cpu.model=6", "cpu.family=79"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"cpu": map[string]interface{}{"model": "6", "family": "79"},
	}, constraints)
}

func TestHWConstraintsCPUFlagsAccumulate(t *testing.T) {
	constraints, err := HWConstraints([]string{"cpu.flag=avx", "cpu.flag=sse"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"cpu": map[string]interface{}{"flag": []interface{}{"avx", "sse"}},
	}, constraints)
}

func TestHWConstraintsDiskList(t *testing.T) {
	constraints, err := HWConstraints([]string{"disk.size=>= 40 GiB", "disk.model-name=Samsung"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"disk": []interface{}{
			map[string]interface{}{"size": ">= 40 GiB"},
			map[string]interface{}{"model-name": "Samsung"},
		},
	}, constraints)
}

func TestHWConstraintsNetworkNested(t *testing.T) {
	constraints, err := HWConstraints([]string{"network.type=eth"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"network": []interface{}{
			map[string]interface{}{"type": "eth"},
		},
	}, constraints)
}

func TestHWConstraintsCompatibleDistro(t *testing.T) {
	constraints, err := HWConstraints([]string{"compatible.distro=rhel-8", "compatible.distro=rhel-9"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"compatible": map[string]interface{}{
			"distro": []interface{}{"rhel-8", "rhel-9"},
		},
	}, constraints)
}

func TestHWConstraintsBoolCoercion(t *testing.T) {
	constraints, err := HWConstraints([]string{"virtualization.is-virtualized=TRUE", "tpm.enabled=false"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{
		"virtualization": map[string]interface{}{"is-virtualized": true},
		"tpm":            map[string]interface{}{"enabled": false},
	}, constraints)
}

func TestHWConstraintsDeepPath(t *testing.T) {
	constraints, err := HWConstraints([]string{"memory=>= 8 GB"})
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"memory": ">= 8 GB"}, constraints)
}

func TestHWConstraintsInvalid(t *testing.T) {
	var formatErr *cerrors.ConstraintFormatError
	for _, raw := range []string{"no-separator", "=value", "key="} {
		_, err := HWConstraints([]string{raw})
		require.ErrorAs(t, err, &formatErr, raw)
	}
}
