package transport

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/rednetexplorer/core/internal/pool"
)

// UDPBus is a concrete Bus backed by real UDP sockets: unicast Send to a
// known peer address, and Broadcast to the configured broadcast address.
// It stands in for the host's wireless broadcast primitive (spec §1) when
// RedNet-Explorer is deployed as an ordinary network process rather than
// inside the in-game host environment, playing the same UDP-socket role
// a classic DNS listener would, generalized from "DNS query socket" to
// "envelope bus".
type UDPBus struct {
	conn *net.UDPConn

	broadcastAddr *net.UDPAddr

	mu    sync.RWMutex
	peers map[int]*net.UDPAddr

	inbox chan RawFrame

	bufPool *pool.Pool[[]byte]

	closeOnce sync.Once
	closed    chan struct{}
}

// NewUDPBus binds a UDP socket at bindAddr ("host:port") and prepares to
// broadcast to broadcastAddr. It enables SO_BROADCAST and sets SO_RCVBUF
// via golang.org/x/sys/unix; SO_REUSEADDR is not set, so two processes
// cannot bind the same port.
func NewUDPBus(bindAddr, broadcastAddr string, recvBufSize int) (*UDPBus, error) {
	laddr, err := net.ResolveUDPAddr("udp4", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind addr: %w", err)
	}
	baddr, err := net.ResolveUDPAddr("udp4", broadcastAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve broadcast addr: %w", err)
	}

	conn, err := net.ListenUDP("udp4", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}

	if err := tuneSocket(conn, recvBufSize); err != nil {
		// Best-effort: a node should still run without these knobs (spec
		// §4.2's reliability story never depends on kernel buffer sizing).
		_ = err
	}

	bus := &UDPBus{
		conn:          conn,
		broadcastAddr: baddr,
		peers:         make(map[int]*net.UDPAddr),
		inbox:         make(chan RawFrame, 256),
		bufPool: pool.New(func() []byte {
			return make([]byte, 65507)
		}),
		closed: make(chan struct{}),
	}
	go bus.recvLoop()
	return bus, nil
}

// tuneSocket sets SO_BROADCAST (required to transmit to a broadcast
// address) and widens the receive buffer via `unix.SetsockoptInt`.
func tuneSocket(conn *net.UDPConn, recvBufSize int) error {
	sc, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	ctrlErr := sc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, 1)
		if sockErr == nil && recvBufSize > 0 {
			sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, recvBufSize)
		}
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return sockErr
}

// RegisterPeer records the UDP address a node id is reachable at, learned
// out-of-band (e.g. from a peer_announce envelope's source address) since
// the wire envelope itself carries only the integer node id, not a network
// address.
func (u *UDPBus) RegisterPeer(nodeID int, addr *net.UDPAddr) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.peers[nodeID] = addr
}

func (u *UDPBus) peerAddr(nodeID int) (*net.UDPAddr, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	a, ok := u.peers[nodeID]
	return a, ok
}

// Send transmits frame to target's last-known address. Unknown targets are
// reported as an error rather than silently dropped, since unlike
// Broadcast there is no fallback delivery path.
func (u *UDPBus) Send(target int, frame []byte) error {
	addr, ok := u.peerAddr(target)
	if !ok {
		return fmt.Errorf("udpbus: no known address for node %d", target)
	}
	_, err := u.conn.WriteToUDP(frame, addr)
	return err
}

// Broadcast transmits frame to the configured broadcast address.
func (u *UDPBus) Broadcast(frame []byte) error {
	_, err := u.conn.WriteToUDP(frame, u.broadcastAddr)
	return err
}

func (u *UDPBus) Receive() <-chan RawFrame { return u.inbox }

func (u *UDPBus) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.closed)
		err = u.conn.Close()
	})
	return err
}

func (u *UDPBus) recvLoop() {
	defer close(u.inbox)
	for {
		buf := u.bufPool.Get()
		n, raddr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-u.closed:
				return
			default:
				continue
			}
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		u.bufPool.Put(buf)

		from, ok := peekSource(payload)
		if !ok {
			continue
		}
		u.RegisterPeer(from, raddr)

		frame := RawFrame{From: from, Payload: payload}
		select {
		case u.inbox <- frame:
		default:
			// Inbound queue overflow: drop oldest (spec §5 quota). The
			// dropped frame is not counted anywhere.
			select {
			case <-u.inbox:
			default:
			}
			select {
			case u.inbox <- frame:
			default:
			}
		}
	}
}

// peekSource extracts the envelope's "src" field without full decode/MAC
// verification, which the codec performs once the frame reaches the
// Adapter — this only needs enough of the frame to route it.
func peekSource(payload []byte) (int, bool) {
	var probe struct {
		Src int `json:"src"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return 0, false
	}
	return probe.Src, true
}
