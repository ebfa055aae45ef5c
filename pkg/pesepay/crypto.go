package pesepay

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// KeySize is the required length of the encryption key (AES-256)
const KeySize = 32

var errBadPadding = errors.New("pesepay: invalid payload padding")

// cipherBox encrypts and decrypts request and response payloads.
// Pesepay uses AES-256-CBC with the first 16 key bytes as the IV.
type cipherBox struct {
	block cipher.Block
	iv    []byte
}

func newCipherBox(key string) (*cipherBox, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("pesepay: encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("pesepay: %w", err)
	}
	return &cipherBox{block: block, iv: []byte(key[:aes.BlockSize])}, nil
}

// encrypt returns base64(AES-CBC(PKCS7(plain)))
func (c *cipherBox) encrypt(plain []byte) string {
	padded := pkcs7Pad(plain, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

func (c *cipherBox) decrypt(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("pesepay: decode payload: %w", err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("pesepay: payload length %d is not a multiple of the block size", len(raw))
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, errBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, errBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, errBadPadding
		}
	}
	return data[:len(data)-n], nil
}
