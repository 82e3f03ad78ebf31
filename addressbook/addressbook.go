package addressbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sisu-network/dwallet/config"
	"github.com/sisu-network/dwallet/metrics"
	"github.com/sisu-network/dwallet/network"
	"github.com/sisu-network/dwallet/types"
	"github.com/sisu-network/dwallet/utils"
	"github.com/sisu-network/lib/log"
)

var ErrNoNodesAvailable = errors.New("no nodes available to connect to")

// AddressBook keeps the list of peers the wallet may connect to and resolves the node to talk
// to, failing over between peers until one of them answers.
type AddressBook struct {
	path             string
	fixedNode        string
	defaultPort      int
	discoveryTimeout time.Duration
	http             network.Http
	cctx             *types.ConnectionContext

	peers []*types.Peer
	lock  *sync.RWMutex

	persistLock *sync.Mutex

	// intn picks the index of the next peer to try. Replaced in tests.
	intn func(n int) int
}

// NewAddressBook loads the persisted peers at cfg.AddressBookPath and adds the configured
// seeds. A missing file is not an error.
func NewAddressBook(cfg *config.Wallet, http network.Http, cctx *types.ConnectionContext) (*AddressBook, error) {
	ab := &AddressBook{
		path:             cfg.AddressBookPath,
		fixedNode:        cfg.Stargate,
		defaultPort:      cfg.DefaultPort,
		discoveryTimeout: cfg.DiscoveryTimeoutDuration(),
		http:             http,
		cctx:             cctx,
		peers:            make([]*types.Peer, 0),
		lock:             &sync.RWMutex{},
		persistLock:      &sync.Mutex{},
		intn:             rand.Intn,
	}

	if err := ab.loadFromDisc(); err != nil {
		return nil, err
	}

	for _, seed := range cfg.Seeds {
		ab.addPeer(seed)
	}

	return ab, nil
}

func (ab *AddressBook) loadFromDisc() error {
	if ab.path == "" {
		return nil
	}

	bz, err := os.ReadFile(ab.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Verbosef("No address book at %s, starting with an empty peer list", ab.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot read address book %s: %w", ab.path, err)
	}

	hosts := make([]string, 0)
	if err := json.Unmarshal(bz, &hosts); err != nil {
		return fmt.Errorf("cannot parse address book %s: %w", ab.path, err)
	}

	for _, host := range hosts {
		ab.addPeer(host)
	}
	log.Infof("Loaded %d peers from %s", len(hosts), ab.path)

	return nil
}

// persistToDisc writes the hosts of all available peers. Down and incompatible peers are left
// out, the file carries no state. Writers are serialized so the last rename always carries
// the latest peer list.
func (ab *AddressBook) persistToDisc() error {
	if ab.path == "" {
		return nil
	}

	ab.persistLock.Lock()
	defer ab.persistLock.Unlock()

	bz, err := json.Marshal(ab.availableHosts())
	if err != nil {
		return err
	}

	dir := filepath.Dir(ab.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "addressbook-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(bz); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), ab.path)
}

func (ab *AddressBook) availableHosts() []string {
	ab.lock.RLock()
	defer ab.lock.RUnlock()

	hosts := make([]string, 0, len(ab.peers))
	for _, peer := range ab.peers {
		if peer.State == types.PeerAvailable {
			hosts = append(hosts, peer.Host)
		}
	}

	return hosts
}

// addPeer inserts the host unless a known peer's host already contains it. The substring
// match means "10.0.0.1" is not added when "10.0.0.10" is known.
func (ab *AddressBook) addPeer(host string) bool {
	if host == "" {
		return false
	}

	ab.lock.Lock()
	defer ab.lock.Unlock()

	for _, peer := range ab.peers {
		if strings.Contains(peer.Host, host) {
			return false
		}
	}

	ab.peers = append(ab.peers, &types.Peer{Host: host, State: types.PeerAvailable})
	return true
}

// AddPeer adds a peer and persists the address book if the peer is new.
func (ab *AddressBook) AddPeer(host string) error {
	if !ab.addPeer(host) {
		return nil
	}

	log.Verbose("Added peer ", host)
	return ab.persistToDisc()
}

// Peers returns a snapshot of all known peers.
func (ab *AddressBook) Peers() []types.Peer {
	ab.lock.RLock()
	defer ab.lock.RUnlock()

	ret := make([]types.Peer, 0, len(ab.peers))
	for _, peer := range ab.peers {
		ret = append(ret, *peer)
	}

	return ret
}

func (ab *AddressBook) setState(host string, state types.PeerState) {
	ab.lock.Lock()
	defer ab.lock.Unlock()

	for _, peer := range ab.peers {
		if peer.Host == host {
			peer.State = state
			return
		}
	}
}

func (ab *AddressBook) FlagNodeOffline(host string) {
	log.Verbose("Flagging node offline: ", host)
	ab.setState(host, types.PeerDown)
}

func (ab *AddressBook) FlagNodeIncompatible(host string) {
	log.Verbose("Flagging node incompatible: ", host)
	ab.setState(host, types.PeerIncompatible)
}

// ResetNodes gives every peer a fresh chance after a full reconnect cycle.
func (ab *AddressBook) ResetNodes() {
	ab.lock.Lock()
	defer ab.lock.Unlock()

	for _, peer := range ab.peers {
		peer.State = types.PeerAvailable
	}
}

func (ab *AddressBook) pickAvailable() (string, bool) {
	ab.lock.RLock()
	defer ab.lock.RUnlock()

	available := make([]*types.Peer, 0, len(ab.peers))
	for _, peer := range ab.peers {
		if peer.State == types.PeerAvailable {
			available = append(available, peer)
		}
	}

	if len(available) == 0 {
		return "", false
	}

	return available[ab.intn(len(available))].Host, true
}

// PickNode returns the address (host:port) of a node to connect to. A fixed node is returned
// as is. Otherwise random available peers are tried until one answers a discovery request,
// every peer that fails is flagged down. ErrNoNodesAvailable is returned once no available
// peer is left.
func (ab *AddressBook) PickNode(ctx context.Context) (string, error) {
	if ab.fixedNode != "" {
		return ab.fixedNode, nil
	}

	for {
		if ab.cctx != nil && ab.cctx.Stopped() {
			return "", ab.cctx.Context().Err()
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		host, ok := ab.pickAvailable()
		if !ok {
			return "", ErrNoNodesAvailable
		}

		if err := ab.DiscoverPeers(ctx, host); err != nil {
			log.Warnf("Peer %s did not answer discovery, err = %v. Trying another peer", host, err)
			metrics.DiscoveryFailures.Inc()
			ab.FlagNodeOffline(host)
			continue
		}

		if err := ab.persistToDisc(); err != nil {
			log.Error("Cannot persist address book, err = ", err)
		}

		return fmt.Sprintf("%s:%d", host, ab.defaultPort), nil
	}
}

// DiscoverPeers asks the peer for the peers it knows and adds them to the address book.
func (ab *AddressBook) DiscoverPeers(ctx context.Context, host string) error {
	ctx, cancel := context.WithTimeout(ctx, ab.discoveryTimeout)
	defer cancel()

	url := fmt.Sprintf("http://%s:%d/net_info", host, ab.defaultPort)
	bz, err := ab.http.Get(ctx, url)
	if err != nil {
		return err
	}

	netInfo := &types.NetInfoResponse{}
	if err := json.Unmarshal(bz, netInfo); err != nil {
		return fmt.Errorf("malformed net_info response from %s: %w", host, err)
	}

	added := 0
	for _, peer := range netInfo.Result.Peers {
		if ab.addPeer(utils.HostOf(peer.NodeInfo.ListenAddr)) {
			added++
		}
	}

	if added > 0 {
		log.Verbosef("Discovered %d new peers from %s", added, host)
		if err := ab.persistToDisc(); err != nil {
			log.Error("Cannot persist address book, err = ", err)
		}
	}

	return nil
}
