package game

import (
	"encoding/binary"
	"strings"
	"testing"

	"CProject/tools/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTransactionLayoutAndSignature(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)

	tx := buildTransaction(kp, 7, startInstruction(1, 100, 42))

	// ver(1) pub(32) nonce(8) | op(1) type(1) bet(8) session(8) | sig(64)
	require.Len(t, tx, 1+32+8+1+1+8+8+64)
	assert.Equal(t, txVersion, tx[0])
	assert.Equal(t, kp.Public(), tx[1:33])
	assert.Equal(t, uint64(7), binary.BigEndian.Uint64(tx[33:41]))
	assert.Equal(t, byte(opStartGame), tx[41])
	assert.Equal(t, byte(1), tx[42])
	assert.Equal(t, int64(100), int64(binary.BigEndian.Uint64(tx[43:51])))
	assert.Equal(t, uint64(42), binary.BigEndian.Uint64(tx[51:59]))

	// 签名覆盖 ver..payload
	sig := tx[len(tx)-64:]
	assert.True(t, keys.Verify(kp.Public(), tx[:len(tx)-64], sig))

	// 改一个字节签名必失效
	tampered := make([]byte, len(tx))
	copy(tampered, tx)
	tampered[40] ^= 0x01
	assert.False(t, keys.Verify(kp.Public(), tampered[:len(tampered)-64], sig))
}

func TestEncodeRegisterTruncatesLongName(t *testing.T) {
	long := strings.Repeat("x", 300)
	payload := encodeInstruction(registerInstruction(long))

	assert.Equal(t, byte(opRegister), payload[0])
	assert.Equal(t, byte(255), payload[1])
	assert.Len(t, payload, 2+255)
}

func TestEncodeMoveCarriesOpaquePayload(t *testing.T) {
	ins, err := moveInstruction(9, map[string]any{"action": "hit"})
	require.NoError(t, err)

	payload := encodeInstruction(ins)
	assert.Equal(t, byte(opMove), payload[0])
	assert.Equal(t, uint64(9), binary.BigEndian.Uint64(payload[1:9]))

	n := binary.BigEndian.Uint16(payload[9:11])
	body := payload[11 : 11+int(n)]
	assert.JSONEq(t, `{"action":"hit"}`, string(body))
}

func TestGameTypeByte(t *testing.T) {
	b, ok := GameTypeByte("dice")
	assert.True(t, ok)
	assert.Equal(t, byte(2), b)

	_, ok = GameTypeByte("roulette")
	assert.False(t, ok)
}
