package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Function selectors for the factory, pool and router surfaces. Computed
// from the canonical signatures rather than hardcoded.
var (
	selGetPool      = selector("getPool(address,address,bool)")
	selGetReserves  = selector("getReserves()")
	selToken0       = selector("token0()")
	selToken1       = selector("token1()")
	selGetAmountOut = selector("getAmountOut(uint256,address,address)")
)

const wordSize = 32

func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// packCall builds eth_call calldata: 4-byte selector followed by 32-byte
// ABI-encoded static arguments.
func packCall(sel []byte, args ...[]byte) []byte {
	data := make([]byte, 0, 4+len(args)*wordSize)
	data = append(data, sel...)
	for _, a := range args {
		data = append(data, a...)
	}
	return data
}

func packAddress(a common.Address) []byte {
	var w [wordSize]byte
	copy(w[wordSize-common.AddressLength:], a.Bytes())
	return w[:]
}

func packBool(b bool) []byte {
	var w [wordSize]byte
	if b {
		w[wordSize-1] = 1
	}
	return w[:]
}

func packUint(n *big.Int) []byte {
	var w [wordSize]byte
	n.FillBytes(w[:])
	return w[:]
}

// word extracts the i-th 32-byte word from a call result.
func word(data []byte, i int) ([]byte, error) {
	start := i * wordSize
	if len(data) < start+wordSize {
		return nil, fmt.Errorf("result too short: want word %d, have %d bytes", i, len(data))
	}
	return data[start : start+wordSize], nil
}

func wordToAddress(data []byte, i int) (common.Address, error) {
	w, err := word(data, i)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(w[wordSize-common.AddressLength:]), nil
}

func wordToBig(data []byte, i int) (*big.Int, error) {
	w, err := word(data, i)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(w), nil
}
