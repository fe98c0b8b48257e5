// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/fundgov/database/types"
)

func TestUint64Value(t *testing.T) {
	v, err := types.Uint64(18446744073709551615).Value()
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", v)

	var u types.Uint64
	require.NoError(t, u.Scan([]byte("17280")))
	assert.Equal(t, types.Uint64(17280), u)
	require.Error(t, u.Scan(12))
	require.Error(t, u.Scan("-1"))
}

func TestUint256Value(t *testing.T) {
	amount, err := uint256.FromDecimal("10000000000000000000000")
	require.NoError(t, err)
	v, err := types.NewUint256(amount).Value()
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000000000", v)

	var u types.Uint256
	require.NoError(t, u.Scan("10000000000000000000000"))
	assert.Equal(t, amount, u.Int())
	require.Error(t, u.Scan("0x10"))
	require.Error(t, u.Scan(1.5))

	assert.True(t, types.NewUint256(nil).Int().IsZero())
}

func TestUint256IntIsCopy(t *testing.T) {
	u := types.NewUint256(uint256.NewInt(5))
	u.Int().SetUint64(7)
	assert.Equal(t, uint64(5), u.Int().Uint64())
}

func TestAddressValue(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	v, err := types.Address(addr).Value()
	require.NoError(t, err)
	assert.Equal(t, addr.Bytes(), v)

	var a types.Address
	require.NoError(t, a.Scan(addr.Bytes()))
	assert.Equal(t, addr, common.Address(a))
	require.Error(t, a.Scan([]byte{1, 2}))
	require.Error(t, a.Scan("0xaa"))
}
