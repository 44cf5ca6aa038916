// Package deployer turns artifacts and constructor literals into
// contract-creation transactions.
package deployer

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"token-deploy/internal/artifact"
)

var (
	// ErrArgumentCount is returned when the number of constructor arguments
	// does not match the artifact's ABI.
	ErrArgumentCount = errors.New("constructor argument count mismatch")

	// ErrInvalidArgument is returned when a literal cannot be converted to
	// its ABI parameter type.
	ErrInvalidArgument = errors.New("invalid constructor argument")
)

// EncodeConstructor returns the creation payload: bytecode followed by the
// ABI-encoded constructor arguments.
func EncodeConstructor(a *artifact.Artifact, args []any) ([]byte, error) {
	inputs := a.ABI.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%s: want %d, got %d: %w", a.Name, len(inputs), len(args), ErrArgumentCount)
	}

	values := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := convertArg(inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d (%s %s): %w", a.Name, i, inputs[i].Type.String(), inputs[i].Name, err)
		}
		values[i] = v
	}

	packed, err := a.ABI.Pack("", values...)
	if err != nil {
		return nil, fmt.Errorf("%s: pack: %v: %w", a.Name, err, ErrInvalidArgument)
	}

	data := make([]byte, 0, len(a.Bytecode)+len(packed))
	data = append(data, a.Bytecode...)
	return append(data, packed...), nil
}

// convertArg converts a literal to the Go type go-ethereum packs for t.
func convertArg(t abi.Type, arg any) (interface{}, error) {
	switch t.T {
	case abi.AddressTy:
		switch v := arg.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("%q is not an address: %w", v, ErrInvalidArgument)
			}
			return common.HexToAddress(v), nil
		}
	case abi.StringTy:
		if v, ok := arg.(string); ok {
			return v, nil
		}
	case abi.BoolTy:
		if v, ok := arg.(bool); ok {
			return v, nil
		}
	case abi.UintTy, abi.IntTy:
		n, ok := toBigInt(arg)
		if !ok {
			break
		}
		return convertInt(t, n)
	default:
		if arg != nil && reflect.TypeOf(arg) == t.GetType() {
			return arg, nil
		}
	}
	return nil, fmt.Errorf("cannot use %T as %s: %w", arg, t.String(), ErrInvalidArgument)
}

func toBigInt(arg any) (*big.Int, bool) {
	switch v := arg.(type) {
	case *big.Int:
		if v == nil {
			return nil, false
		}
		return new(big.Int).Set(v), true
	case int:
		return big.NewInt(int64(v)), true
	case int8:
		return big.NewInt(int64(v)), true
	case int16:
		return big.NewInt(int64(v)), true
	case int32:
		return big.NewInt(int64(v)), true
	case int64:
		return big.NewInt(v), true
	case uint:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint8:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint16:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), true
	case uint64:
		return new(big.Int).SetUint64(v), true
	case string:
		return new(big.Int).SetString(v, 10)
	}
	return nil, false
}

// convertInt range-checks n against t and returns the sized Go integer
// go-ethereum expects for 8/16/32/64-bit types, *big.Int otherwise.
func convertInt(t abi.Type, n *big.Int) (interface{}, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %s for %s: %w", n, t.String(), ErrInvalidArgument)
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("value %s overflows %s: %w", n, t.String(), ErrInvalidArgument)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return n, nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	minimum := new(big.Int).Neg(limit)
	if n.Cmp(minimum) < 0 || n.Cmp(limit) >= 0 {
		return nil, fmt.Errorf("value %s overflows %s: %w", n, t.String(), ErrInvalidArgument)
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return n, nil
}
