package account

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"github.com/bsv-blockchain/go-sdk/script"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// BIP44 path constants. Participants live under their own account
	// branch so they never collide with fee or vault keys of the same seed.
	PurposeBIP44       = 44
	CoinType           = 236
	ParticipantAccount = 2
	ExternalChain      = 0

	// Hardened is the BIP32 hardened offset.
	Hardened = 0x80000000
)

// Deriver derives deterministic participant accounts from a BIP39 mnemonic.
//
//	Path: m/44'/236'/2'/0/index
type Deriver struct {
	chain   *bip32.ExtendedKey
	mainnet bool
}

// NewDeriver builds a Deriver for the named network ("mainnet", "testnet"
// or "regtest").
func NewDeriver(mnemonic, passphrase, network string) (*Deriver, error) {
	var (
		net     *chaincfg.Params
		mainnet bool
	)
	switch network {
	case "mainnet":
		net, mainnet = &chaincfg.MainNet, true
	case "testnet", "regtest":
		net = &chaincfg.TestNet
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidNetwork, network)
	}

	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}

	master, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	key := master
	for _, idx := range []uint32{PurposeBIP44 + Hardened, CoinType + Hardened, ParticipantAccount + Hardened, ExternalChain} {
		key, err = key.Child(idx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
		}
	}

	return &Deriver{chain: key, mainnet: mainnet}, nil
}

// Derive returns the P2PKH account at the given participant index.
func (d *Deriver) Derive(index uint32) (Account, error) {
	if index >= Hardened {
		return Null, ErrIndexOutOfRange
	}
	child, err := d.chain.Child(index)
	if err != nil {
		return Null, fmt.Errorf("%w: index %d: %w", ErrDerivationFailed, index, err)
	}
	priv, err := child.ECPrivKey()
	if err != nil {
		return Null, fmt.Errorf("%w: private key: %w", ErrDerivationFailed, err)
	}
	addr, err := script.NewAddressFromPublicKey(priv.PubKey(), d.mainnet)
	if err != nil {
		return Null, fmt.Errorf("%w: address: %w", ErrDerivationFailed, err)
	}
	return Account(addr.AddressString), nil
}
