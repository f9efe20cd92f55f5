// Package crypto loads the settlement agent's key and signs its
// transactions. Keys live either in the environment or in a
// password-encrypted keystore file.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 480_000
	saltLen          = 16
	aesKeyLen        = 32
	keystoreVersion  = 1
)

// ErrEmptyPassword is returned when a keystore operation has no password.
var ErrEmptyPassword = errors.New("crypto: keystore password must not be empty")

// keystore is the on-disk format written by EncryptKey. Address is stored in
// the clear so operators can tell which agent a file belongs to.
type keystore struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// KeyConfig says where LoadKey finds the agent key.
type KeyConfig struct {
	// RawPrivateKey is hex, with or without 0x. It wins when set.
	RawPrivateKey string
	// EncryptedKeyPath points at a keystore written by EncryptKey.
	EncryptedKeyPath string
	KeyPassword      string
}

// EncryptKey seals a hex private key under password with PBKDF2-SHA256 and
// AES-256-GCM and returns the keystore JSON.
func EncryptKey(privateKeyHex, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	pk, err := ethcrypto.HexToECDSA(trim0x(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid private key: %w", err)
	}

	ks := keystore{
		Version: keystoreVersion,
		Address: ethcrypto.PubkeyToAddress(pk.PublicKey).Hex(),
		Salt:    make([]byte, saltLen),
	}
	if _, err := rand.Read(ks.Salt); err != nil {
		return nil, fmt.Errorf("crypto: salt: %w", err)
	}
	gcm, err := deriveAEAD(password, ks.Salt)
	if err != nil {
		return nil, err
	}
	ks.Nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(ks.Nonce); err != nil {
		return nil, fmt.Errorf("crypto: nonce: %w", err)
	}
	// The address is bound as associated data so it cannot be swapped.
	ks.Ciphertext = gcm.Seal(nil, ks.Nonce, ethcrypto.FromECDSA(pk), []byte(ks.Address))

	return json.MarshalIndent(ks, "", "  ")
}

// DecryptKey opens a keystore and returns the hex key without 0x. It fails
// when the decrypted key does not belong to the recorded address.
func DecryptKey(data []byte, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	var ks keystore
	if err := json.Unmarshal(data, &ks); err != nil {
		return "", fmt.Errorf("crypto: parse keystore: %w", err)
	}
	if ks.Version != keystoreVersion {
		return "", fmt.Errorf("crypto: unsupported keystore version %d", ks.Version)
	}

	gcm, err := deriveAEAD(password, ks.Salt)
	if err != nil {
		return "", err
	}
	if len(ks.Nonce) != gcm.NonceSize() {
		return "", fmt.Errorf("crypto: keystore nonce is %d bytes", len(ks.Nonce))
	}
	raw, err := gcm.Open(nil, ks.Nonce, ks.Ciphertext, []byte(ks.Address))
	if err != nil {
		return "", fmt.Errorf("crypto: open keystore (wrong password?): %w", err)
	}
	pk, err := ethcrypto.ToECDSA(raw)
	if err != nil {
		return "", fmt.Errorf("crypto: keystore holds an invalid key: %w", err)
	}
	if got := ethcrypto.PubkeyToAddress(pk.PublicKey).Hex(); got != ks.Address {
		return "", fmt.Errorf("crypto: keystore key is for %s, file says %s", got, ks.Address)
	}
	return hex.EncodeToString(raw), nil
}

// LoadKey returns the hex key (without 0x) from the raw value or, failing
// that, the keystore file.
func LoadKey(cfg KeyConfig) (string, error) {
	switch {
	case cfg.RawPrivateKey != "":
		k := trim0x(cfg.RawPrivateKey)
		if _, err := hex.DecodeString(k); err != nil {
			return "", fmt.Errorf("crypto: private key is not valid hex: %w", err)
		}
		return k, nil
	case cfg.EncryptedKeyPath != "":
		data, err := os.ReadFile(cfg.EncryptedKeyPath)
		if err != nil {
			return "", fmt.Errorf("crypto: read keystore: %w", err)
		}
		return DecryptKey(data, cfg.KeyPassword)
	}
	return "", errors.New("crypto: no agent key configured")
}

func deriveAEAD(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(pbkdf2.Key([]byte(password), salt, pbkdf2Iterations, aesKeyLen, sha256.New))
	if err != nil {
		return nil, fmt.Errorf("crypto: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: gcm: %w", err)
	}
	return gcm, nil
}
