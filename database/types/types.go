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

package types

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Uint64 is stored as a decimal string so the full unsigned range survives
// databases with signed 64-bit integers
//
//nolint:recvcheck
type Uint64 uint64

func (u Uint64) Value() (driver.Value, error) {
	return strconv.FormatUint(uint64(u), 10), nil
}

func (u *Uint64) Scan(val any) error {
	v, err := scanString(val)
	if err != nil {
		return err
	}
	tmpUint, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return err
	}
	*u = Uint64(tmpUint)
	return nil
}

func (Uint64) GormDataType() string {
	return "string"
}

// Uint256 is a 256-bit token amount stored as a decimal string
//
//nolint:recvcheck
type Uint256 uint256.Int

func NewUint256(v *uint256.Int) Uint256 {
	if v == nil {
		return Uint256{}
	}
	return Uint256(*v)
}

// Int returns a copy of the value as a *uint256.Int
func (u Uint256) Int() *uint256.Int {
	v := uint256.Int(u)
	return &v
}

func (u Uint256) Value() (driver.Value, error) {
	v := uint256.Int(u)
	return v.Dec(), nil
}

func (u *Uint256) Scan(val any) error {
	v, err := scanString(val)
	if err != nil {
		return err
	}
	tmp, err := uint256.FromDecimal(v)
	if err != nil {
		return fmt.Errorf("failed to parse uint256 value %q: %w", v, err)
	}
	*u = Uint256(*tmp)
	return nil
}

func (Uint256) GormDataType() string {
	return "string"
}

// Address stores an identity as its 20 raw bytes
//
//nolint:recvcheck
type Address common.Address

func (a Address) Value() (driver.Value, error) {
	return common.Address(a).Bytes(), nil
}

func (a *Address) Scan(val any) error {
	v, ok := val.([]byte)
	if !ok {
		return fmt.Errorf(
			"value was not expected type, wanted []byte, got %T",
			val,
		)
	}
	if len(v) != common.AddressLength {
		return fmt.Errorf("invalid address length %d", len(v))
	}
	*a = Address(common.BytesToAddress(v))
	return nil
}

func (Address) GormDataType() string {
	return "bytes"
}

func scanString(val any) (string, error) {
	switch v := val.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf(
			"value was not expected type, wanted string, got %T",
			val,
		)
	}
}
