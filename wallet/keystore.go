package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/tolelom/drawchain/crypto"
)

// ErrBadPassword is returned when a keystore does not decrypt.
var ErrBadPassword = errors.New("wrong password or corrupted keystore")

// Key files use the Web3 Secret Storage format with the light scrypt profile.
const (
	scryptN = keystore.LightScryptN
	scryptP = keystore.LightScryptP
)

// SaveKey encrypts priv under password and writes it to path, readable by
// the owner only.
func SaveKey(path, password string, priv crypto.PrivateKey) error {
	ecdsaKey, err := priv.ECDSA()
	if err != nil {
		return fmt.Errorf("keystore: %w", err)
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	data, err := keystore.EncryptKey(&keystore.Key{
		Id:         id,
		Address:    ethcrypto.PubkeyToAddress(ecdsaKey.PublicKey),
		PrivateKey: ecdsaKey,
	}, password, scryptN, scryptP)
	if err != nil {
		return fmt.Errorf("encrypt key: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKey decrypts the keystore at path. The address recorded in the file
// must match the decrypted key.
func LoadKey(path, password string) (crypto.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("keystore %s: %w", path, err)
	}
	key, err := keystore.DecryptKey(data, password)
	if err != nil {
		if errors.Is(err, keystore.ErrDecrypt) {
			return nil, ErrBadPassword
		}
		return nil, fmt.Errorf("keystore %s: %w", path, err)
	}
	if header.Address != "" && common.HexToAddress(header.Address) != key.Address {
		return nil, fmt.Errorf("keystore address mismatch: file says %s, key is %s", header.Address, key.Address.Hex())
	}
	return crypto.PrivateKey(ethcrypto.FromECDSA(key.PrivateKey)), nil
}
