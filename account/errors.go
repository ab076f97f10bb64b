package account

import "errors"

var (
	// ErrInvalidAddress indicates the string is not a valid P2PKH address.
	ErrInvalidAddress = errors.New("account: invalid address")

	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("account: invalid BIP39 mnemonic")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("account: key derivation failed")

	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("account: invalid network name")

	// ErrIndexOutOfRange indicates a participant index reaches the hardened range.
	ErrIndexOutOfRange = errors.New("account: participant index exceeds maximum (2^31-1)")
)
