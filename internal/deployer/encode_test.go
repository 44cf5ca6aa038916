package deployer

import (
	"bytes"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-deploy/internal/artifact"
)

func loadArtifact(t *testing.T, name string) *artifact.Artifact {
	t.Helper()
	a, err := artifact.NewDirRegistry("../artifact/testdata").Require(name)
	require.NoError(t, err)
	return a
}

func tokenArgs() []any {
	return []any{
		"TestCoin", "TST",
		uint64(500000000), uint64(100),
		"0xC5fdf4076b8F3A5357c5E395ab970B5B54098Fef",
		uint64(1518451520),
		uint64(20), uint64(10), uint64(5), uint64(1),
	}
}

func TestEncodeConstructor_Manager(t *testing.T) {
	a := loadArtifact(t, "Manager")

	data, err := EncodeConstructor(a, []any{
		"0x29206D36B147B00A4592D5D9154Ac32ab4830fB0",
		"0xe0014f07625ae3ef38050B28339b0203DDCdf045",
	})
	require.NoError(t, err)

	require.Len(t, data, len(a.Bytecode)+64)
	assert.True(t, bytes.HasPrefix(data, a.Bytecode))

	owner := common.HexToAddress("0x29206D36B147B00A4592D5D9154Ac32ab4830fB0")
	operator := common.HexToAddress("0xe0014f07625ae3ef38050B28339b0203DDCdf045")
	args := data[len(a.Bytecode):]
	assert.Equal(t, owner.Bytes(), args[12:32])
	assert.Equal(t, operator.Bytes(), args[44:64])
}

func TestEncodeConstructor_Token(t *testing.T) {
	a := loadArtifact(t, "Token")

	data, err := EncodeConstructor(a, tokenArgs())
	require.NoError(t, err)

	// ten head words plus length and data words for two short strings
	require.Len(t, data, len(a.Bytecode)+10*32+2*64)

	args := data[len(a.Bytecode):]
	supply := new(big.Int).SetBytes(args[2*32 : 3*32])
	assert.Equal(t, int64(500000000), supply.Int64())
	start := new(big.Int).SetBytes(args[5*32 : 6*32])
	assert.Equal(t, int64(1518451520), start.Int64())
	assert.Equal(t, byte(20), args[7*32-1])
	assert.Equal(t, byte(1), args[10*32-1])
	assert.Contains(t, string(args), "TestCoin")
}

func TestEncodeConstructor_ArgumentCount(t *testing.T) {
	a := loadArtifact(t, "Manager")

	_, err := EncodeConstructor(a, []any{"0x29206D36B147B00A4592D5D9154Ac32ab4830fB0"})
	assert.ErrorIs(t, err, ErrArgumentCount)

	_, err = EncodeConstructor(loadArtifact(t, "Token"), tokenArgs()[:9])
	assert.ErrorIs(t, err, ErrArgumentCount)
}

func TestEncodeConstructor_InvalidArgument(t *testing.T) {
	a := loadArtifact(t, "Token")

	tests := []struct {
		name  string
		index int
		value any
	}{
		{"name not string", 0, 42},
		{"negative supply", 2, -1},
		{"supply not number", 2, "lots"},
		{"bad wallet", 4, "0xC5fdf4076b8F3A5357c5E395ab970B5B5409"},
		{"wallet wrong type", 4, 12345},
		{"fee overflows uint8", 6, uint64(256)},
		{"nil big int", 3, (*big.Int)(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := tokenArgs()
			args[tt.index] = tt.value
			_, err := EncodeConstructor(a, args)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestEncodeConstructor_AcceptedIntegerForms(t *testing.T) {
	a := loadArtifact(t, "Token")

	args := tokenArgs()
	args[2] = big.NewInt(500000000)
	args[3] = 100
	args[5] = "1518451520"
	args[6] = uint8(20)
	args[4] = common.HexToAddress("0xC5fdf4076b8F3A5357c5E395ab970B5B54098Fef")

	got, err := EncodeConstructor(a, args)
	require.NoError(t, err)

	want, err := EncodeConstructor(a, tokenArgs())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEncodeConstructor_SignedTypes(t *testing.T) {
	parsed, err := abi.JSON(strings.NewReader(`[{"type":"constructor","inputs":[
		{"name":"small","type":"int16"},
		{"name":"big","type":"int256"},
		{"name":"flag","type":"bool"}
	]}]`))
	require.NoError(t, err)
	a := &artifact.Artifact{Name: "Signed", ABI: parsed, Bytecode: []byte{0x60, 0x80}}

	data, err := EncodeConstructor(a, []any{-2, int64(-1), true})
	require.NoError(t, err)
	require.Len(t, data, 2+3*32)
	assert.Equal(t, byte(0xff), data[2], "two's complement")
	assert.Equal(t, byte(0xfe), data[2+31])
	assert.Equal(t, byte(1), data[len(data)-1])

	_, err = EncodeConstructor(a, []any{40000, 0, true})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = EncodeConstructor(a, []any{1, 0, "yes"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
