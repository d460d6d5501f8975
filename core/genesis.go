package core

// NetworkParams replaces the source's process-wide globals (genesis
// constants, network discriminator) per spec §9's design note: a single
// value constructed at startup and threaded through every component rather
// than package-level state, so multiple networks can coexist in one binary
// for testing even though production deploys exactly one (spec §6).

import "math/big"

// Discriminator is the second magic byte identifying which of the three
// coexisting networks a node speaks.
type Discriminator byte

const (
	NetworkTest Discriminator = 'A'
	NetworkBeta Discriminator = 'B'
	NetworkLive Discriminator = 'C'
)

// MagicFirst is the first header magic byte, constant across networks.
const MagicFirst = 'R'

// NetworkParams bundles every genesis/epoch constant a component needs.
type NetworkParams struct {
	Discriminator Discriminator

	GenesisAccount Account
	GenesisOpen    *Block
	MaxSupply      U128 // 2^128 - 1, the full raw amount minted to genesis

	// EpochLink is the sentinel link value marking an epoch-upgrade state
	// block (node config `epoch_block_link`); EpochSigner is the required
	// signer for such blocks (`epoch_block_signer`).
	EpochLink   U256
	EpochSigner Account

	// WorkThreshold bounds the PoW oracle for every block kind: a
	// block's nonce must, hashed with its previous/root, produce a value
	// at or above this threshold. Spec §1 treats PoW generation as an
	// external oracle; this is the one piece of verification logic this
	// repo still owns (parser rejection per spec §4.G).
	WorkThreshold uint64
}

func maxSupply() U128 {
	max := new(big.Int).Lsh(big.NewInt(1), 128)
	max.Sub(max, big.NewInt(1))
	return U128FromBig(max)
}

// TestNetworkParams returns the parameter set used by the test network (S1
// in spec §8): genesis account
// B0311EA55708D6A53C75CDBF88300259C6D018522FE3D4D0A242E431F9E8B6D0 with work
// 9680625b39d3363d.
func TestNetworkParams() *NetworkParams {
	genesisAccount, err := DecodeU256Hex("B0311EA55708D6A53C75CDBF88300259C6D018522FE3D4D0A242E431F9E8B6D0")
	if err != nil {
		panic("core: invalid embedded genesis account: " + err.Error())
	}
	work, err := DecodeWorkHex("9680625b39d3363d")
	if err != nil {
		panic("core: invalid embedded genesis work: " + err.Error())
	}
	supply := maxSupply()
	open := &Block{
		Kind:           KindOpen,
		Source:         genesisAccount,
		Representative: genesisAccount,
		OpenAccount:    genesisAccount,
		Work:           work,
	}
	return &NetworkParams{
		Discriminator:  NetworkTest,
		GenesisAccount: genesisAccount,
		GenesisOpen:    open,
		MaxSupply:      supply,
		EpochLink:      epochLinkSentinel(),
		EpochSigner:    genesisAccount,
		WorkThreshold:  0xff00000000000000, // low bar, suitable for test-network block generation
	}
}

// epochLinkSentinel is an arbitrary but fixed 32-byte value distinguishing
// an epoch-upgrade state block's link field from a legitimate pending-send
// hash; spec §4.C step 5. It is configuration in production (node config
// `epoch_block_link`) — this is the compiled-in test-network default.
func epochLinkSentinel() U256 {
	return blake2b256([]byte("btcb epoch v1"))
}
