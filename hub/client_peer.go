package hub

import (
	"errors"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/tls-chat/database"
	"github.com/tls-chat/peer"
	"github.com/tls-chat/wire"
)

// 会话阶段，只能单向推进
const (
	phasePreauth int32 = iota
	phaseJoined
	phaseClosed
)

// 连续解码失败这么多次就认为对端已经不同步，直接断开
const maxDecodeFailures = 3

// ClientPeer 代表一条客户端连接上的会话。
// 认证前只响应 getsalt、register、login，进入聊天室后
// 只响应 chat、private，阶段不对的消息悄悄丢掉
type ClientPeer struct {
	*peer.Peer
	hub *Hub

	// name 在成功登录时由读协程写入一次，之后只读
	name  string
	phase int32

	decodeFailures int
}

// newClientPeer 包装一条已握手完成的连接并开始收发
func newClientPeer(h *Hub, conn net.Conn) *ClientPeer {
	clientPeer := &ClientPeer{
		hub:   h,
		phase: phasePreauth,
	}
	peerCfg := &peer.Config{
		WriteWait:      time.Duration(h.config.Peer.WriteWait) * time.Second,
		ReadTimeout:    time.Duration(h.config.Peer.ReadTimeout) * time.Second,
		MaxMessageSize: h.config.Peer.MaxMessageSize,
		// 登录时一次性压入 success + 整段历史回放，
		// 队列必须装得下这波突发，不然回放会被丢帧
		MessageQueueLen: 2 * historyLimit,
		Listeners: &peer.MessageListeners{
			OnMessage:    clientPeer.OnMessage,
			OnDisconnect: clientPeer.OnDisconnect,
		},
	}
	clientPeer.Peer = peer.NewPeer(conn.RemoteAddr().String(), peerCfg)
	clientPeer.SetConnection(conn)
	return clientPeer
}

// OnMessage 处理一个入站帧。在读协程里被串行调用，
// 所以同一条连接上的消息天然保序
func (p *ClientPeer) OnMessage(payload []byte) error {
	frame, err := wire.DecodePayload(payload)
	if err != nil {
		// 没见过的类型标签悄悄丢掉，坏帧才计数
		if errors.Is(err, wire.ErrUnknownType) {
			return nil
		}
		p.decodeFailures++
		log.Printf("peer %v: decode: %v", p.ID(), err)
		if p.decodeFailures >= maxDecodeFailures {
			p.Close()
		}
		return nil
	}
	p.decodeFailures = 0

	// 客户端不会发裸字符串帧
	if frame.IsString() {
		return nil
	}

	switch atomic.LoadInt32(&p.phase) {
	case phasePreauth:
		switch msg := frame.Record.(type) {
		case *wire.MsgGetSalt:
			p.handleGetSalt(msg)
		case *wire.MsgRegister:
			p.handleRegister(msg)
		case *wire.MsgLogin:
			p.handleLogin(msg)
		}
	case phaseJoined:
		switch msg := frame.Record.(type) {
		case *wire.MsgChat:
			p.hub.Broadcast(p.name, "["+p.name+"]："+msg.Content, database.LevelUser)
		case *wire.MsgPrivate:
			p.hub.Direct(p, msg.To, msg.Content)
		}
	}
	return nil
}

// OnDisconnect 连接断开时由读协程回调，负责把已登录的会话
// 从注册表里摘掉。重复调用无害
func (p *ClientPeer) OnDisconnect() error {
	prev := atomic.SwapInt32(&p.phase, phaseClosed)
	if prev == phaseJoined {
		p.hub.Leave(p, p.name)
	}
	p.Close()
	return nil
}

// reply 给本会话发一条裸字符串应答
func (p *ClientPeer) reply(str string) {
	payload, err := wire.EncodeString(str)
	if err != nil {
		return
	}
	p.PushMessage(payload, nil)
}

func (p *ClientPeer) replySystem(content string) {
	payload, err := wire.EncodeRecord(&wire.MsgSystem{Content: content})
	if err != nil {
		return
	}
	p.PushMessage(payload, nil)
}
