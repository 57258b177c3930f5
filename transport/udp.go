package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// readBufferSize holds the largest RTP, SRTP or ZRTP datagram.
	readBufferSize = 8192

	readTimeout = 100 * time.Millisecond
)

// ErrNoRemote indicates Push was called before a remote address was set.
var ErrNoRemote = errors.New("transport: remote address not set")

// Handler processes one received datagram. The buffer is owned by the
// handler.
type Handler func(buf []byte) error

// UDPPort is one UDP socket of a media stream. Push sends to the remote
// address; Serve delivers received datagrams to a handler. A UDPPort is a
// zrtpfilter.Pad.
type UDPPort struct {
	conn   net.PacketConn
	mu     sync.RWMutex
	remote net.Addr
	logger *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	served bool
}

// ListenUDP opens a UDP port on listenAddr.
func ListenUDP(listenAddr string) (*UDPPort, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", listenAddr, err)
	}
	return newUDPPort(conn), nil
}

func newUDPPort(conn net.PacketConn) *UDPPort {
	ctx, cancel := context.WithCancel(context.Background())
	return &UDPPort{
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		logger: logrus.WithFields(logrus.Fields{
			"package":    "transport",
			"local_addr": conn.LocalAddr().String(),
		}),
	}
}

// SetRemote sets the destination of Push.
func (p *UDPPort) SetRemote(addr net.Addr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.remote = addr
}

// SetRemoteString resolves and sets the destination of Push.
func (p *UDPPort) SetRemoteString(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", addr, err)
	}
	p.SetRemote(udpAddr)
	return nil
}

// Remote returns the destination of Push.
func (p *UDPPort) Remote() net.Addr {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.remote
}

// LocalAddr returns the address the port is bound to.
func (p *UDPPort) LocalAddr() net.Addr {
	return p.conn.LocalAddr()
}

// Push sends buf to the remote address.
func (p *UDPPort) Push(buf []byte) error {
	remote := p.Remote()
	if remote == nil {
		return ErrNoRemote
	}
	_, err := p.conn.WriteTo(buf, remote)
	return err
}

// Serve starts delivering datagrams to handler on a new goroutine. With
// learnRemote set, the source of the first datagram becomes the remote
// address if none was configured. Serve may be called once.
func (p *UDPPort) Serve(handler Handler, learnRemote bool) error {
	p.mu.Lock()
	if p.served {
		p.mu.Unlock()
		return errors.New("transport: port already serving")
	}
	p.served = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.processPackets(handler, learnRemote)
	return nil
}

// Close stops the read loop and closes the socket.
func (p *UDPPort) Close() error {
	p.cancel()
	err := p.conn.Close()
	p.wg.Wait()
	return err
}

func (p *UDPPort) processPackets(handler Handler, learnRemote bool) {
	defer p.wg.Done()
	buffer := make([]byte, readBufferSize)
	failing := false

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		data, addr, err := p.readPacketData(buffer)
		if err != nil {
			if p.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			if isTimeout(err) {
				continue
			}
			// Errors such as ICMP port unreachable repeat on every read.
			if !failing {
				p.logger.WithError(err).Warn("UDP read failed")
				failing = true
			} else {
				p.logger.WithError(err).Debug("UDP read still failing")
			}
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(readTimeout):
			}
			continue
		}
		failing = false

		if learnRemote && p.Remote() == nil {
			p.SetRemote(addr)
			p.logger.WithField("remote_addr", addr.String()).Debug("Learned remote address")
		}

		if err := handler(data); err != nil {
			p.logger.WithError(err).Debug("Datagram dropped")
		}
	}
}

// readPacketData reads one datagram with a short deadline so the loop can
// notice cancellation.
func (p *UDPPort) readPacketData(buffer []byte) ([]byte, net.Addr, error) {
	_ = p.conn.SetReadDeadline(time.Now().Add(readTimeout))

	n, addr, err := p.conn.ReadFrom(buffer)
	if err != nil {
		return nil, nil, err
	}

	data := make([]byte, n)
	copy(data, buffer[:n])
	return data, addr, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
