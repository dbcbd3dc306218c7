package utils_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/omni/root-bridge-syncer/utils"
)

func TestParsePrivateKey(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	hexKey := common.Bytes2Hex(crypto.FromECDSA(key))
	expected := crypto.PubkeyToAddress(key.PublicKey)

	for _, input := range []string{hexKey, "0x" + hexKey, " 0x" + hexKey + "\n"} {
		parsed, addr, err2 := utils.ParsePrivateKey(input)
		require.NoError(t, err2)
		require.Equal(t, expected, addr)
		require.True(t, key.Equal(parsed))
	}

	for _, input := range []string{"", "0x1234", "zz" + hexKey[2:]} {
		_, _, err2 := utils.ParsePrivateKey(input)
		require.Error(t, err2)
	}
}
