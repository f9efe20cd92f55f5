package domain

import "github.com/ethereum/go-ethereum/common"

// NormalizeAccount validates a hex address and returns its checksummed form,
// so stores key accounts case-insensitively.
func NormalizeAccount(account string) (string, error) {
	if !common.IsHexAddress(account) {
		return "", ErrInvalidAccount
	}
	return common.HexToAddress(account).Hex(), nil
}
