// Package peer 封装了单个连接的底层收发。
// 读泵逐帧上抛，写泵独占出站流，保证对单个对端的写不会交错。
package peer

import (
	"bufio"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tls-chat/wire"
)

const (
	// Time allowed to write a message to the peer.
	defaultWriteWait = 10 * time.Second

	// 对端超过这个时长没有任何消息就断开
	defaultReadTimeout = 60 * time.Second

	// Maximum message size allowed from peer.
	defaultMaxMessageSize = 4096

	defaultMessageQueueLen = 32
)

// MessageListeners 消息监听
type MessageListeners struct {
	// OnMessage 收到一个完整帧时回调，按到达顺序串行调用
	OnMessage func(payload []byte) error

	OnDisconnect func() error
}

// Config 节点配置
type Config struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// 读超时，覆盖认证前后两个阶段
	ReadTimeout time.Duration
	// Maximum message size allowed from peer.
	MaxMessageSize int

	// MessageQueueLen message len
	MessageQueueLen int

	Listeners *MessageListeners
}

type outMessage struct {
	payload []byte
	done    chan<- struct{}
}

// Peer 节点封装了一条连接的读写
type Peer struct {
	id     string
	config *Config
	conn   net.Conn
	send   chan outMessage

	sendMu     sync.Mutex
	sendClosed bool

	timeConnected time.Time

	connected int32
}

// NewPeer 创建一个新的节点
func NewPeer(id string, config *Config) *Peer {
	if config.WriteWait == 0 {
		config.WriteWait = defaultWriteWait
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaultReadTimeout
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = defaultMaxMessageSize
	}
	if config.MessageQueueLen == 0 {
		config.MessageQueueLen = defaultMessageQueueLen
	}
	return &Peer{
		id:     id,
		config: config,
		send:   make(chan outMessage, config.MessageQueueLen),
	}
}

// ID 节点标识，日志用
func (p *Peer) ID() string {
	return p.id
}

// SetConnection bind connection , start
func (p *Peer) SetConnection(conn net.Conn) {
	// Already connected?
	if !atomic.CompareAndSwapInt32(&p.connected, 0, 1) {
		return
	}

	p.conn = conn
	p.timeConnected = time.Now()

	go p.handleRead()
	go p.handleWrite()
}

// IsConnected 连接是否仍然存活
func (p *Peer) IsConnected() bool {
	return atomic.LoadInt32(&p.connected) == 1
}

func (p *Peer) handleRead() {
	defer func() {
		p.config.Listeners.OnDisconnect()
		p.disconnect()
	}()
	reader := bufio.NewReader(p.conn)
	for {
		p.conn.SetReadDeadline(time.Now().Add(p.config.ReadTimeout))
		payload, err := wire.ReadFrame(reader, uint32(p.config.MaxMessageSize))
		if err != nil {
			// 对端关闭、超时或者帧长异常，统一走断开
			break
		}
		// 串行上抛，保证单个对端的消息按发送顺序处理
		if err := p.config.Listeners.OnMessage(payload); err != nil {
			log.Printf("peer %v message: %v", p.id, err)
		}
	}
}

func (p *Peer) handleWrite() {
	defer p.disconnect()
	w := bufio.NewWriter(p.conn)
	for out := range p.send {
		p.conn.SetWriteDeadline(time.Now().Add(p.config.WriteWait))
		if err := wire.WriteFrame(w, out.payload); err != nil {
			signalDone(out.done)
			return
		}
		signalDone(out.done)

		// 把队列里攒下的帧凑到同一次 flush
		n := len(p.send)
		for i := 0; i < n; i++ {
			out := <-p.send
			if err := wire.WriteFrame(w, out.payload); err != nil {
				signalDone(out.done)
				return
			}
			signalDone(out.done)
		}

		if err := w.Flush(); err != nil {
			return
		}
	}
}

// PushMessage 把编码好的 payload 写到发送队列。
// 队列满说明对端收不动了，直接丢弃，读写泵会在 I/O 层面发现死对端
func (p *Peer) PushMessage(payload []byte, doneChan chan<- struct{}) {
	p.sendMu.Lock()
	if p.sendClosed || !p.IsConnected() {
		p.sendMu.Unlock()
		signalDoneAsync(doneChan)
		return
	}
	select {
	case p.send <- outMessage{payload: payload, done: doneChan}:
		p.sendMu.Unlock()
	default:
		p.sendMu.Unlock()
		log.Printf("peer %v send queue full, dropping frame", p.id)
		signalDoneAsync(doneChan)
	}
}

// Close close conn
func (p *Peer) Close() {
	p.sendMu.Lock()
	if !p.sendClosed {
		p.sendClosed = true
		close(p.send)
	}
	p.sendMu.Unlock()
}

// 断开连接，幂等
func (p *Peer) disconnect() {
	if !atomic.CompareAndSwapInt32(&p.connected, 1, 0) {
		return
	}
	p.conn.Close()
}

func signalDone(done chan<- struct{}) {
	if done != nil {
		done <- struct{}{}
	}
}

func signalDoneAsync(done chan<- struct{}) {
	if done != nil {
		go func() {
			done <- struct{}{}
		}()
	}
}
