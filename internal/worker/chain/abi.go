package chain

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Minimal ABI encoding for the two notary contract methods the worker
// calls. Only the argument kinds those methods use are supported: bytes32,
// address, uint256 and one trailing dynamic string.

// selector returns the 4-byte method selector for a canonical signature
// such as "recordHash(bytes32)".
func selector(signature string) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return h.Sum(nil)[:4]
}

func encodeBytes32(hexStr string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid hex argument: %w", err)
	}
	if len(raw) > 32 {
		return nil, fmt.Errorf("argument exceeds 32 bytes: %d", len(raw))
	}
	word := make([]byte, 32)
	copy(word, raw)
	return word, nil
}

func encodeAddress(addr string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(addr, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}
	if len(raw) != 20 {
		return nil, fmt.Errorf("address must be 20 bytes, got %d", len(raw))
	}
	word := make([]byte, 32)
	copy(word[12:], raw)
	return word, nil
}

func encodeUint256(v *big.Int) []byte {
	word := make([]byte, 32)
	v.FillBytes(word)
	return word
}

// encodeString ABI-encodes a dynamic string placed at the given head offset:
// a length word followed by the payload padded to a 32-byte boundary.
func encodeString(s string) []byte {
	payload := []byte(s)
	padded := (len(payload) + 31) / 32 * 32
	out := make([]byte, 32+padded)
	big.NewInt(int64(len(payload))).FillBytes(out[:32])
	copy(out[32:], payload)
	return out
}

// recordHashCalldata builds calldata for recordHash(bytes32).
func recordHashCalldata(fileHash string) ([]byte, error) {
	arg, err := encodeBytes32(fileHash)
	if err != nil {
		return nil, err
	}
	return append(selector("recordHash(bytes32)"), arg...), nil
}

// mintCalldata builds calldata for mint(address,uint256,string). The string
// is the only dynamic argument, so its head slot holds the fixed offset of
// the tail (3 words).
func mintCalldata(ownerAddress string, tokenID int64, metadataURL string) ([]byte, error) {
	owner, err := encodeAddress(ownerAddress)
	if err != nil {
		return nil, err
	}

	data := selector("mint(address,uint256,string)")
	data = append(data, owner...)
	data = append(data, encodeUint256(big.NewInt(tokenID))...)
	data = append(data, encodeUint256(big.NewInt(3*32))...)
	data = append(data, encodeString(metadataURL)...)
	return data, nil
}
