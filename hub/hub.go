// Package hub 是服务中心：维护已登录用户的权威注册表，
// 并把聊天、私信、名单、历史在所有连接之间分发。
package hub

import (
	"bytes"
	"errors"
	"log"
	"net"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set"
	"github.com/tls-chat/config"
	"github.com/tls-chat/database"
	"github.com/tls-chat/filelog"
	"github.com/tls-chat/wire"
)

// 历史回放的行数
const historyLimit = 50

const (
	auditEventJoin  = "join"
	auditEventLeave = "leave"
)

var (
	// ErrNameOnline 同名用户已经在线，第二个登录请求会被拒掉
	ErrNameOnline = errors.New("username already online")
)

// Hub 持有注册表和所有协作方。
// 注册表的插入、删除和扇出互斥，这个规模下一把锁足够了
type Hub struct {
	config   *config.Config
	users    database.UserStore
	messages database.MessageStore
	presence database.PresenceCache

	mu    sync.Mutex
	peers map[string]*ClientPeer
	// names 和 peers 的 key 保持一致，出名单快照用
	names mapset.Set

	listeners []net.Listener

	loginLog *filelog.FileLog
}

// NewHub 创建一个 Hub 对象。presence 和 loginLog 可以为 nil
func NewHub(cfg *config.Config, users database.UserStore, messages database.MessageStore,
	presence database.PresenceCache, loginLog *filelog.FileLog) *Hub {
	return &Hub{
		config:   cfg,
		users:    users,
		messages: messages,
		presence: presence,
		peers:    make(map[string]*ClientPeer, 100),
		names:    mapset.NewSet(),
		loginLog: loginLog,
	}
}

// Join 把通过认证的会话转入聊天室。
// 历史查询、注册、"success" 应答和回放在同一个临界区里完成：
// 广播也在这把锁下扇出，所以并发提交的消息要么赶上查询进回放，
// 要么等注册完成后实时送达，不会两头落空，也不会交错进回放
func (h *Hub) Join(peer *ClientPeer, name string) error {
	h.mu.Lock()
	if h.names.Contains(name) {
		h.mu.Unlock()
		return ErrNameOnline
	}
	history, err := h.messages.Recent(historyLimit, name)
	if err != nil {
		// 历史拿不到不挡登录
		log.Println("load history:", err)
		history = nil
	}
	h.peers[name] = peer
	h.names.Add(name)

	if payload, err := wire.EncodeString(replySuccess); err == nil {
		peer.PushMessage(payload, nil)
	}
	for _, line := range history {
		payload, err := wire.EncodeRecord(&wire.MsgHistory{Log: line})
		if err != nil {
			continue
		}
		peer.PushMessage(payload, nil)
	}
	online := len(h.peers)
	h.mu.Unlock()

	onlineUsers.Set(float64(online))
	if h.presence != nil {
		if err := h.presence.AddOnline(name); err != nil {
			log.Println("presence add:", err)
		}
	}
	h.audit(name, auditEventJoin)
	log.Printf("client %v joined", name)

	h.Broadcast(name, name+" 进入了聊天室", database.LevelSystem)
	h.PushRoster()
	return nil
}

// Leave 把会话移出聊天室并向剩下的人通报。
// 只有当 name 仍然绑定着这个会话时才生效，幂等
func (h *Hub) Leave(peer *ClientPeer, name string) {
	h.mu.Lock()
	current, ok := h.peers[name]
	if !ok || current != peer {
		h.mu.Unlock()
		return
	}
	delete(h.peers, name)
	h.names.Remove(name)
	online := len(h.peers)
	h.mu.Unlock()

	onlineUsers.Set(float64(online))
	if h.presence != nil {
		if err := h.presence.DelOnline(name); err != nil {
			log.Println("presence del:", err)
		}
	}
	h.audit(name, auditEventLeave)
	log.Printf("client %v disconnected", name)

	h.Broadcast(name, name+" 离开了聊天室", database.LevelSystem)
	h.PushRoster()
}

// Lookup 按用户名找在线会话
func (h *Hub) Lookup(name string) (*ClientPeer, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peer, ok := h.peers[name]
	return peer, ok
}

// Broadcast 把一条消息发给包括发送者在内的所有在线会话，然后落库。
// 发送者也收到自己那份，客户端靠服务端回流统一渲染。
// 单个对端推不进去就跳过，它的会话会在自己的 I/O 上发现断开
func (h *Hub) Broadcast(sender, body string, level string) {
	payload, err := wire.EncodeRecord(&wire.MsgChat{Sender: sender, Content: body})
	if err != nil {
		log.Println("encode broadcast:", err)
		return
	}

	start := time.Now()
	h.mu.Lock()
	for _, peer := range h.peers {
		peer.PushMessage(payload, nil)
	}
	h.mu.Unlock()
	fanoutSeconds.Observe(time.Since(start).Seconds())
	// 进出场通报不混进用户聊天量
	if level == database.LevelUser {
		messagesTotal.WithLabelValues("chat").Inc()
	} else {
		messagesTotal.WithLabelValues("system").Inc()
	}

	// 落库失败只记日志，分发不能停
	if err := h.messages.Append(sender, "", body, level); err != nil {
		log.Println("append chat log:", err)
	}
}

// Direct 把私信发给指定的在线用户。
// 对方不在线时给发送者回一条系统提示，并且不落库
func (h *Hub) Direct(from *ClientPeer, to, content string) {
	target, ok := h.Lookup(to)
	if !ok {
		from.replySystem("用户 '" + to + "' 不存在或不在线")
		return
	}

	payload, err := wire.EncodeRecord(&wire.MsgPrivate{
		Sender:  from.name,
		To:      to,
		Content: content,
	})
	if err != nil {
		log.Println("encode private:", err)
		return
	}
	target.PushMessage(payload, nil)
	messagesTotal.WithLabelValues("private").Inc()

	if err := h.messages.Append(from.name, to, content, database.LevelUser); err != nil {
		log.Println("append chat log:", err)
	}
}

// PushRoster 把刷新后的在线名单发给所有会话
func (h *Hub) PushRoster() {
	h.mu.Lock()
	users := make(map[string]bool, len(h.peers))
	for name := range h.peers {
		users[name] = true
	}
	payload, err := wire.EncodeRecord(&wire.MsgUserList{Users: users})
	if err != nil {
		h.mu.Unlock()
		log.Println("encode roster:", err)
		return
	}
	for _, peer := range h.peers {
		peer.PushMessage(payload, nil)
	}
	h.mu.Unlock()
	messagesTotal.WithLabelValues("user_list").Inc()
}

// Online 当前在线的用户名快照
func (h *Hub) Online() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.peers))
	for name := range h.peers {
		names = append(names, name)
	}
	return names
}

func (h *Hub) audit(name, event string) {
	if h.loginLog == nil {
		return
	}
	if err := h.loginLog.Write(encodeLoginEvent(name, event, time.Now())); err != nil {
		log.Println("audit write:", err)
	}
}

// Close 停止接收新连接并关闭所有会话
func (h *Hub) Close() {
	h.mu.Lock()
	listeners := h.listeners
	h.listeners = nil
	peers := make([]*ClientPeer, 0, len(h.peers))
	for _, peer := range h.peers {
		peers = append(peers, peer)
	}
	h.mu.Unlock()

	for _, listener := range listeners {
		listener.Close()
	}
	for _, peer := range peers {
		peer.Close()
	}
}

func encodeLoginEvent(name, event string, at time.Time) []byte {
	buf := &bytes.Buffer{}
	wire.WriteString(buf, name)
	wire.WriteString(buf, event)
	wire.WriteInt64(buf, at.Unix())
	return buf.Bytes()
}

// DecodeLoginEvent 解出一条登录流水，filelog 的消费端用
func DecodeLoginEvent(buf *bytes.Buffer) (*database.LoginLog, error) {
	name, err := wire.ReadString(buf)
	if err != nil {
		return nil, err
	}
	event, err := wire.ReadString(buf)
	if err != nil {
		return nil, err
	}
	unix, err := wire.ReadInt64(buf)
	if err != nil {
		return nil, err
	}
	return &database.LoginLog{
		Username: name,
		Event:    event,
		At:       time.Unix(unix, 0),
	}, nil
}
