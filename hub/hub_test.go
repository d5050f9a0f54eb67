package hub

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-xorm/xorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"xorm.io/core"

	"github.com/tls-chat/config"
	"github.com/tls-chat/database"
	"github.com/tls-chat/wire"
)

func newTestHub(t *testing.T) (*Hub, *xorm.Engine) {
	engine, err := xorm.NewEngine("sqlite3", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	engine.SetColumnMapper(core.SnakeMapper{})
	t.Cleanup(func() { engine.Close() })

	cfg := &config.Config{
		Server: config.ServerConfig{Secret: "test-secret"},
	}
	h := NewHub(cfg,
		database.NewDbUserStore(engine),
		database.NewDbMessageStore(engine),
		database.NewMemPresenceCache(),
		nil)
	t.Cleanup(h.Close)
	return h, engine
}

// testClient 模拟一个协议客户端，挂在 net.Pipe 的另一端
type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dial(t *testing.T, h *Hub) *testClient {
	server, client := net.Pipe()
	newClientPeer(h, server)
	return &testClient{t: t, conn: client, reader: bufio.NewReader(client)}
}

func (c *testClient) send(rec wire.Record) {
	payload, err := wire.EncodeRecord(rec)
	require.NoError(c.t, err)
	c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	require.NoError(c.t, wire.WriteFrame(c.conn, payload))
}

func (c *testClient) next() *wire.Frame {
	c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	payload, err := wire.ReadFrame(c.reader, 4096)
	require.NoError(c.t, err)
	frame, err := wire.DecodePayload(payload)
	require.NoError(c.t, err)
	return frame
}

func (c *testClient) expectReply(want string) {
	frame := c.next()
	require.True(c.t, frame.IsString(), "expected string reply, got record")
	assert.Equal(c.t, want, frame.Str)
}

func (c *testClient) nextChat() *wire.MsgChat {
	frame := c.next()
	msg, ok := frame.Record.(*wire.MsgChat)
	require.True(c.t, ok, "expected chat, got %T", frame.Record)
	return msg
}

func (c *testClient) nextRoster() *wire.MsgUserList {
	frame := c.next()
	msg, ok := frame.Record.(*wire.MsgUserList)
	require.True(c.t, ok, "expected user_list, got %T", frame.Record)
	return msg
}

func (c *testClient) close() {
	c.conn.Close()
}

func hashPassword(salt []byte, password string) string {
	sum := sha256.Sum256(append(append([]byte{}, salt...), []byte(password)...))
	return hex.EncodeToString(sum[:])
}

func registerUser(t *testing.T, h *Hub, name, password string) []byte {
	salt := []byte("0123456789abcdef")
	require.NoError(t, h.users.Register(name, hashPassword(salt, password), salt))
	return salt
}

// login 跑完 getsalt/login 握手并消费掉进场通报和名单
func (c *testClient) login(name, password string) {
	c.send(&wire.MsgGetSalt{Username: name})
	frame := c.next()
	ret, ok := frame.Record.(*wire.MsgReturnSalt)
	require.True(c.t, ok)
	c.send(&wire.MsgLogin{Username: name, Password: hashPassword(ret.Salt, password)})
	c.expectReply("success")
	assert.Equal(c.t, name+" 进入了聊天室", c.nextChat().Content)
	c.nextRoster()
}

func TestGetSaltUnknownUser(t *testing.T) {
	h, _ := newTestHub(t)
	client := dial(t, h)
	defer client.close()

	client.send(&wire.MsgGetSalt{Username: "nobody"})
	frame := client.next()
	first, ok := frame.Record.(*wire.MsgReturnSalt)
	require.True(t, ok)
	assert.Len(t, first.Salt, 16)

	// 同一个名字每次问到的假盐必须一样
	client.send(&wire.MsgGetSalt{Username: "nobody"})
	frame = client.next()
	second := frame.Record.(*wire.MsgReturnSalt)
	assert.Equal(t, first.Salt, second.Salt)

	// 和真实用户的盐走的是同一条应答路径
	salt := registerUser(t, h, "alice", "pw")
	client.send(&wire.MsgGetSalt{Username: "alice"})
	frame = client.next()
	assert.Equal(t, salt, frame.Record.(*wire.MsgReturnSalt).Salt)
}

func TestRegister(t *testing.T) {
	h, _ := newTestHub(t)
	client := dial(t, h)
	defer client.close()

	salt := []byte("fedcba9876543210")
	client.send(&wire.MsgRegister{Username: "alice", PasswordHash: hashPassword(salt, "pw"), Salt: salt})
	client.expectReply("success")

	client.send(&wire.MsgRegister{Username: "alice", PasswordHash: hashPassword(salt, "other"), Salt: salt})
	client.expectReply("用户名已存在，请更换用户名后重试")

	// 注册不影响当前阶段，同一条连接接着登录
	client.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(salt, "pw")})
	client.expectReply("success")
}

func TestLoginFailures(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	client := dial(t, h)
	defer client.close()

	client.send(&wire.MsgLogin{Username: "ghost", Password: "whatever"})
	client.expectReply("用户不存在，请注册")

	client.send(&wire.MsgLogin{Username: "alice", Password: "wrong-hash"})
	client.expectReply("用户名或密码错误")

	// 失败不终止会话，凭证对了照样进来
	salt, err := h.users.SaltFor("alice")
	require.NoError(t, err)
	client.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(salt, "pw")})
	client.expectReply("success")
}

func TestDuplicateLoginRefused(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	registerUser(t, h, "bob", "pw")

	first := dial(t, h)
	defer first.close()
	first.login("alice", "pw")

	second := dial(t, h)
	defer second.close()
	salt, err := h.users.SaltFor("alice")
	require.NoError(t, err)
	second.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(salt, "pw")})
	second.expectReply("用户名已存在")

	// 被拒的连接留在认证前阶段，换个名字还能登录
	second.login("bob", "pw")

	// 第一个会话没受任何影响
	assert.Equal(t, "bob 进入了聊天室", first.nextChat().Content)
	roster := first.nextRoster()
	assert.True(t, roster.Users["alice"])
	assert.True(t, roster.Users["bob"])
}

func TestBroadcast(t *testing.T) {
	h, engine := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	registerUser(t, h, "bob", "pw")

	alice := dial(t, h)
	defer alice.close()
	alice.login("alice", "pw")
	bob := dial(t, h)
	defer bob.close()
	bob.login("bob", "pw")
	assert.Equal(t, "bob 进入了聊天室", alice.nextChat().Content)
	alice.nextRoster()

	// sender 字段冒充别人也没用，服务端只认会话身份
	alice.send(&wire.MsgChat{Sender: "bob", Content: "hi all"})

	for _, client := range []*testClient{alice, bob} {
		msg := client.nextChat()
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "[alice]：hi all", msg.Content)
	}

	var rows []database.ChatLog
	require.NoError(t, engine.Where("log_level = ?", database.LevelUser).Find(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0].Sender)
	assert.Equal(t, "", rows[0].Receiver)
	assert.Equal(t, "[alice]：hi all", rows[0].Message)
}

func TestPrivateMessage(t *testing.T) {
	h, engine := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	registerUser(t, h, "bob", "pw")

	alice := dial(t, h)
	defer alice.close()
	alice.login("alice", "pw")
	bob := dial(t, h)
	defer bob.close()
	bob.login("bob", "pw")
	alice.nextChat()
	alice.nextRoster()

	alice.send(&wire.MsgPrivate{To: "bob", Content: "psst"})
	frame := bob.next()
	msg, ok := frame.Record.(*wire.MsgPrivate)
	require.True(t, ok)
	assert.Equal(t, "alice", msg.Sender)
	assert.Equal(t, "psst", msg.Content)

	var rows []database.ChatLog
	require.NoError(t, engine.Where("receiver <> ''").Find(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "bob", rows[0].Receiver)

	// 对方不在线：发送者收到系统提示，不落库
	alice.send(&wire.MsgPrivate{To: "carol", Content: "hello?"})
	frame = alice.next()
	sys, ok := frame.Record.(*wire.MsgSystem)
	require.True(t, ok)
	assert.Equal(t, "用户 'carol' 不存在或不在线", sys.Content)

	rows = nil
	require.NoError(t, engine.Where("receiver <> ''").Find(&rows))
	assert.Len(t, rows, 1)
}

func TestDepartureAnnounced(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	registerUser(t, h, "bob", "pw")

	alice := dial(t, h)
	defer alice.close()
	alice.login("alice", "pw")
	bob := dial(t, h)
	bob.login("bob", "pw")
	alice.nextChat()
	alice.nextRoster()

	bob.close()

	assert.Equal(t, "bob 离开了聊天室", alice.nextChat().Content)
	roster := alice.nextRoster()
	assert.True(t, roster.Users["alice"])
	_, stillThere := roster.Users["bob"]
	assert.False(t, stillThere)

	online, err := h.presence.Online()
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, online)
}

func TestHistoryReplay(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")

	// 广播、发给 alice 的私信、别人之间的私信、系统行
	require.NoError(t, h.messages.Append("bob", "", "[bob]：hello", database.LevelUser))
	require.NoError(t, h.messages.Append("bob", "alice", "secret", database.LevelUser))
	require.NoError(t, h.messages.Append("bob", "carol", "not yours", database.LevelUser))
	require.NoError(t, h.messages.Append("carol", "", "carol 进入了聊天室", database.LevelSystem))

	client := dial(t, h)
	defer client.close()
	client.send(&wire.MsgGetSalt{Username: "alice"})
	ret := client.next().Record.(*wire.MsgReturnSalt)
	client.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(ret.Salt, "pw")})
	client.expectReply("success")

	// 历史先于任何实时帧到达，系统行和别人的私信被过滤掉
	var lines []string
	for i := 0; i < 2; i++ {
		frame := client.next()
		msg, ok := frame.Record.(*wire.MsgHistory)
		require.True(t, ok, "expected history, got %T", frame.Record)
		lines = append(lines, msg.Log)
	}
	assert.Contains(t, lines[0], "[bob] [")
	assert.Contains(t, lines[0], "]：[bob]：hello")
	assert.Contains(t, lines[1], "]：[私信] secret")

	assert.Equal(t, "alice 进入了聊天室", client.nextChat().Content)
	roster := client.nextRoster()
	assert.True(t, roster.Users["alice"])
}

func TestPreauthIgnoresChat(t *testing.T) {
	h, engine := newTestHub(t)
	client := dial(t, h)
	defer client.close()

	// 没登录就发聊天，悄悄丢掉，连接还活着
	client.send(&wire.MsgChat{Content: "sneaky"})
	client.send(&wire.MsgGetSalt{Username: "nobody"})
	frame := client.next()
	_, ok := frame.Record.(*wire.MsgReturnSalt)
	require.True(t, ok)

	count, err := engine.Count(new(database.ChatLog))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestHistoryReplayCompleteUnderSlowReader(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	for i := 0; i < historyLimit; i++ {
		require.NoError(t, h.messages.Append("bob", "", fmt.Sprintf("[bob]：msg-%03d", i), database.LevelUser))
	}

	client := dial(t, h)
	defer client.close()
	client.send(&wire.MsgGetSalt{Username: "alice"})
	ret := client.next().Record.(*wire.MsgReturnSalt)
	client.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(ret.Salt, "pw")})

	// 读端故意滞后，让 success + 整段回放都压在发送队列里
	time.Sleep(100 * time.Millisecond)

	client.expectReply("success")
	for i := 0; i < historyLimit; i++ {
		frame := client.next()
		msg, ok := frame.Record.(*wire.MsgHistory)
		require.True(t, ok, "frame %d: expected history, got %T", i, frame.Record)
		assert.Contains(t, msg.Log, fmt.Sprintf("[bob]：msg-%03d", i))
	}
	assert.Equal(t, "alice 进入了聊天室", client.nextChat().Content)
}

// gatedMessageStore 卡住 Recent，用来制造和登录并发的广播
type gatedMessageStore struct {
	database.MessageStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedMessageStore) Recent(limit int, viewer string) ([]string, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.MessageStore.Recent(limit, viewer)
}

func TestJoinConcurrentBroadcastNotLost(t *testing.T) {
	h, _ := newTestHub(t)
	registerUser(t, h, "alice", "pw")
	gate := &gatedMessageStore{
		MessageStore: h.messages,
		entered:      make(chan struct{}, 1),
		release:      make(chan struct{}),
	}
	h.messages = gate

	client := dial(t, h)
	defer client.close()
	client.send(&wire.MsgGetSalt{Username: "alice"})
	ret := client.next().Record.(*wire.MsgReturnSalt)
	client.send(&wire.MsgLogin{Username: "alice", Password: hashPassword(ret.Salt, "pw")})

	// 登录正停在历史查询上，注册还没发生
	<-gate.entered

	done := make(chan struct{})
	go func() {
		h.Broadcast("bob", "concurrent", database.LevelUser)
		close(done)
	}()
	// 广播必须等注册完成，不能从登录中间穿过去
	select {
	case <-done:
		t.Fatal("broadcast finished while join still held the registry")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate.release)
	<-done

	client.expectReply("success")
	// 回放为空，这条广播只能以实时帧到达（和进场通报的先后不定）
	var got []string
	for i := 0; i < 3; i++ {
		frame := client.next()
		if msg, ok := frame.Record.(*wire.MsgChat); ok {
			got = append(got, msg.Content)
		}
	}
	assert.Contains(t, got, "concurrent")
}

func TestRegisterRejectsBadSalt(t *testing.T) {
	h, _ := newTestHub(t)
	client := dial(t, h)
	defer client.close()

	for _, salt := range [][]byte{nil, []byte("short"), make([]byte, 64)} {
		client.send(&wire.MsgRegister{Username: "alice", PasswordHash: "deadbeef", Salt: salt})
		client.expectReply("服务器内部错误")
	}

	exists, err := h.users.Exists("alice")
	require.NoError(t, err)
	assert.False(t, exists)

	salt := []byte("0123456789abcdef")
	client.send(&wire.MsgRegister{Username: "alice", PasswordHash: hashPassword(salt, "pw"), Salt: salt})
	client.expectReply("success")
}

func TestBroadcastMetricsByLevel(t *testing.T) {
	h, _ := newTestHub(t)

	chatBefore := testutil.ToFloat64(messagesTotal.WithLabelValues("chat"))
	systemBefore := testutil.ToFloat64(messagesTotal.WithLabelValues("system"))

	h.Broadcast("alice", "[alice]：hi", database.LevelUser)
	h.Broadcast("bob", "bob 进入了聊天室", database.LevelSystem)

	assert.Equal(t, chatBefore+1, testutil.ToFloat64(messagesTotal.WithLabelValues("chat")))
	assert.Equal(t, systemBefore+1, testutil.ToFloat64(messagesTotal.WithLabelValues("system")))
}

func TestLoginEventRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	buf := encodeLoginEvent("alice", auditEventJoin, at)

	event, err := DecodeLoginEvent(bytes.NewBuffer(buf))
	require.NoError(t, err)
	assert.Equal(t, "alice", event.Username)
	assert.Equal(t, "join", event.Event)
	assert.Equal(t, at.Unix(), event.At.Unix())
}
