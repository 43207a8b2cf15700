package drm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// KeySize is the AES-256 key length derived from a license key.
const KeySize = 32

// hmacSize is the length of a full HMAC-SHA1 digest.
const hmacSize = sha1.Size

// entryHeaderSize is the fixed size of the encrypted-entry header:
// three little-endian uint32 fields.
const entryHeaderSize = 12

// aesIV is the fixed initialization vector used by the external encryptor.
// Compatibility contract; must match bit-for-bit.
var aesIV = []byte{
	0x2A, 0x22, 0x32, 0x62, 0x5C, 0x5F, 0x6F, 0x67,
	0x75, 0x6D, 0x7B, 0x29, 0x2B, 0x2E, 0x78, 0x69,
}

// hmacKey is the fixed 64-byte HMAC-SHA1 key used by the external encryptor.
// Compatibility contract; must match bit-for-bit.
var hmacKey = []byte{
	0x3E, 0x40, 0x7A, 0x6C, 0x71, 0x38, 0x7D, 0x7C, 0x51, 0x70, 0x2C, 0x62, 0x53, 0x39, 0x5F, 0x7E,
	0x2B, 0x78, 0x57, 0x31, 0x26, 0x4E, 0x49, 0x71, 0x68, 0x29, 0x31, 0x36, 0x25, 0x3B, 0x41, 0x74,
	0x59, 0x3B, 0x73, 0x36, 0x30, 0x31, 0x78, 0x35, 0x7A, 0x6C, 0x23, 0x5F, 0x61, 0x4C, 0x41, 0x7E,
	0x60, 0x34, 0x4D, 0x2A, 0x71, 0x50, 0x3B, 0x44, 0x64, 0x2B, 0x3D, 0x37, 0x26, 0x2C, 0x4A, 0x44,
}

// entryHeader is the parsed fixed-size header that precedes every encrypted
// archive entry. The 20-byte HMAC digest is split around the ciphertext:
// hmacFront bytes directly after the header, the remaining 20-hmacFront
// bytes directly after the ciphertext.
type entryHeader struct {
	originalLen uint32
	cipherLen   uint32
	hmacFront   uint32
}

// parseEntryHeader reads and validates the header from the start of data.
// It checks the HMAC split length and that the declared regions fit within
// the entry before any cryptographic work is attempted.
func parseEntryHeader(data []byte) (entryHeader, error) {
	if len(data) < entryHeaderSize {
		return entryHeader{}, fmt.Errorf("%w: entry shorter than header (%d bytes)", ErrFormat, len(data))
	}
	h := entryHeader{
		originalLen: binary.LittleEndian.Uint32(data[0:4]),
		cipherLen:   binary.LittleEndian.Uint32(data[4:8]),
		hmacFront:   binary.LittleEndian.Uint32(data[8:12]),
	}
	if h.hmacFront == 0 || h.hmacFront > hmacSize {
		return entryHeader{}, fmt.Errorf("%w: hmac front length %d out of range", ErrFormat, h.hmacFront)
	}
	total := uint64(entryHeaderSize) + uint64(h.cipherLen) + uint64(hmacSize)
	if total > uint64(len(data)) {
		return entryHeader{}, fmt.Errorf("%w: declared %d bytes, entry has %d", ErrFormat, total, len(data))
	}
	return h, nil
}

// DeriveKey decodes a base64 license key and truncates it to the 32 bytes
// used as the AES-256 key. The key lives only for one pipeline invocation
// and must never be persisted or logged.
func DeriveKey(licenseKey string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(licenseKey)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64", ErrKeyFormat)
	}
	if len(raw) < KeySize {
		return nil, fmt.Errorf("%w: decoded key is %d bytes, need %d", ErrKeyFormat, len(raw), KeySize)
	}
	return raw[:KeySize], nil
}

// DecryptEntry decrypts one encrypted archive entry and returns the original
// plaintext. The layout is [header][hmacFront bytes][ciphertext][remaining
// hmac bytes]. Verification happens before decryption; a digest mismatch
// returns ErrIntegrity and no plaintext is ever produced from unverified
// ciphertext. The function is pure.
func DecryptEntry(data []byte, key []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, need %d", ErrKeyFormat, len(key), KeySize)
	}
	h, err := parseEntryHeader(data)
	if err != nil {
		return nil, err
	}

	off := entryHeaderSize
	digest := make([]byte, hmacSize)
	copy(digest[:h.hmacFront], data[off:off+int(h.hmacFront)])
	off += int(h.hmacFront)

	ciphertext := data[off : off+int(h.cipherLen)]
	off += int(h.cipherLen)
	copy(digest[h.hmacFront:], data[off:off+int(hmacSize-h.hmacFront)])

	mac := hmac.New(sha1.New, hmacKey)
	mac.Write(ciphertext)
	if !hmac.Equal(digest, mac.Sum(nil)) {
		return nil, fmt.Errorf("%w: hmac mismatch (corrupted data or wrong key)", ErrIntegrity)
	}

	plain, err := decryptAESCBC(ciphertext, key)
	if err != nil {
		return nil, err
	}
	if uint64(len(plain)) < uint64(h.originalLen) {
		return nil, fmt.Errorf("%w: plaintext %d bytes shorter than declared %d", ErrFormat, len(plain), h.originalLen)
	}
	return plain[:h.originalLen], nil
}

// decryptAESCBC decrypts AES-256-CBC ciphertext with the fixed IV and strips
// PKCS7 padding.
func decryptAESCBC(ciphertext, key []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d not a multiple of the block size", ErrFormat, len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, aesIV).CryptBlocks(plain, ciphertext)
	return stripPKCS7(plain)
}

// stripPKCS7 removes PKCS7 padding from plain.
func stripPKCS7(plain []byte) ([]byte, error) {
	if len(plain) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrFormat)
	}
	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return nil, fmt.Errorf("%w: invalid pkcs7 padding", ErrFormat)
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: invalid pkcs7 padding", ErrFormat)
		}
	}
	return plain[:len(plain)-pad], nil
}
