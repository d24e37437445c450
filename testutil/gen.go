package testutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/ipfs/go-test/random"
	"github.com/libp2p/go-libp2p/core/peer"
)

// WalletAddress is the payer of deals made in tests
const WalletAddress = "0x00000000000000000000000000000000000000aa"

// ProviderAddress returns the address of the i'th test provider. Addresses
// are distinct for distinct i and valid ethereum addresses.
func ProviderAddress(i int) string {
	return fmt.Sprintf("0x%040x", 0x1000+i)
}

// RandomBytes returns n bytes of random payload
func RandomBytes(n int64) []byte {
	return random.Bytes(int(n))
}

func GenerateCid() cid.Cid {
	return GenerateCids(1)[0]
}

// GenerateCids returns n distinct CIDs of random blocks
func GenerateCids(n int) []cid.Cid {
	return random.Cids(n)
}

// GeneratePeer returns a random libp2p peer, as found in indexer records
func GeneratePeer() peer.ID {
	return random.Peers(1)[0]
}
