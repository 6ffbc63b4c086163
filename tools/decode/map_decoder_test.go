package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	Type string `json:"type"`
	Bet  int64  `json:"bet"`
	Seq  uint64 `json:"seq"`
}

func TestDecodeMapWeakTyping(t *testing.T) {
	// JSON 数字进来是 float64 字符串数字也要能收
	out, err := DecodeMap[frame](map[string]any{
		"type": "start_game",
		"bet":  float64(100),
		"seq":  "7",
	})
	require.NoError(t, err)
	assert.Equal(t, "start_game", out.Type)
	assert.Equal(t, int64(100), out.Bet)
	assert.Equal(t, uint64(7), out.Seq)
}

func TestDecodeMapNilPayload(t *testing.T) {
	_, err := DecodeMap[frame](nil)
	assert.Error(t, err)
}

func TestDecodeMapNegativeUint(t *testing.T) {
	_, err := DecodeMap[frame](map[string]any{"seq": float64(-1)})
	assert.Error(t, err)
}

func TestReadHelpers(t *testing.T) {
	m := map[string]any{"action": "hit", "amount": float64(50)}

	s, err := ReadString(m, "action")
	require.NoError(t, err)
	assert.Equal(t, "hit", s)

	n, err := ReadInt64(m, "amount")
	require.NoError(t, err)
	assert.Equal(t, int64(50), n)

	_, err = ReadString(m, "missing")
	assert.Error(t, err)
	_, err = ReadInt64(m, "action")
	assert.Error(t, err)
}
