package client

import (
	"nftmarket/core/types"
	"nftmarket/crypto"
)

// Account couples a signing key with its ledger address. Trader and deployer
// accounts are long-lived and kept in keystore files; slot accounts use
// throwaway keys that stop mattering once the slot is rekeyed to its owner.
type Account struct {
	Key     *crypto.PrivateKey
	Address types.Address
}

// NewAccount generates a fresh keypair-backed account.
func NewAccount() (*Account, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	return &Account{Key: key, Address: key.PubKey().Address()}, nil
}

// LoadAccount decrypts an account key from a keystore file.
func LoadAccount(path, passphrase string) (*Account, error) {
	key, err := crypto.LoadFromKeystore(path, passphrase)
	if err != nil {
		return nil, err
	}
	return &Account{Key: key, Address: key.PubKey().Address()}, nil
}

// Save writes the account key to a keystore file.
func (a *Account) Save(path, passphrase string) error {
	return crypto.SaveToKeystore(path, a.Key, passphrase)
}
