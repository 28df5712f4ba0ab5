package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"nftmarket/core/types"
)

// AddressHRP is the human-readable prefix used when rendering ledger
// addresses for operators and tooling.
const AddressHRP = "mkt"

// PrivateKey wraps a secp256k1 private key.
type PrivateKey struct {
	*ecdsa.PrivateKey
}

// PublicKey wraps a secp256k1 public key.
type PublicKey struct {
	*ecdsa.PublicKey
}

// GeneratePrivateKey creates a fresh keypair. Slot accounts are backed by
// throwaway keys generated here and rekeyed to their owner immediately after
// funding.
func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(ethcrypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromBytes rebuilds a key from its raw scalar bytes.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the raw scalar bytes of the private key.
func (k *PrivateKey) Bytes() []byte {
	return ethcrypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Address derives the 20-byte ledger address for the key.
func (k *PublicKey) Address() types.Address {
	return types.BytesToAddress(ethcrypto.PubkeyToAddress(*k.PublicKey).Bytes())
}

// EncodeAddress renders a ledger address as a bech32 string with the market
// prefix.
func EncodeAddress(a types.Address) (string, error) {
	conv, err := bech32.ConvertBits(a.Bytes(), 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(AddressHRP, conv)
}

// DecodeAddress parses a bech32 address produced by EncodeAddress.
func DecodeAddress(s string) (types.Address, error) {
	hrp, decoded, err := bech32.Decode(s)
	if err != nil {
		return types.Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if hrp != AddressHRP {
		return types.Address{}, fmt.Errorf("unexpected address prefix %q", hrp)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return types.Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != types.AddressLength {
		return types.Address{}, fmt.Errorf("invalid address length %d", len(conv))
	}
	return types.BytesToAddress(conv), nil
}
