package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"

	pkgerr "github.com/pkg/errors"
)

// Keypair 会话密钥对 私钥不出包 只暴露 Sign
type Keypair struct {
	pub  ed25519.PublicKey
	priv ed25519.PrivateKey
}

func Generate() (*Keypair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, pkgerr.Wrap(err, "generate keypair")
	}
	return &Keypair{pub: pub, priv: priv}, nil
}

// Public returns the raw public key bytes (32 bytes).
func (k *Keypair) Public() []byte {
	out := make([]byte, len(k.pub))
	copy(out, k.pub)
	return out
}

// PublicHex is the account identity used by the backend.
func (k *Keypair) PublicHex() string {
	return hex.EncodeToString(k.pub)
}

// Sign 对消息签名 返回 64 字节签名
func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// Verify 校验签名 单测用
func Verify(pub []byte, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
