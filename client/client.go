// Package client 实现聊天协议的客户端，命令行工具和集成测试共用。
package client

import (
	"bufio"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/tls-chat/wire"
)

const defaultMaxFrameSize = 4096

var (
	// ErrAuthFailed 服务端回了非 success 的认证应答
	ErrAuthFailed = errors.New("authentication failed")
)

// Config 客户端配置
type Config struct {
	// Addr host:port
	Addr string
	// InsecureSkipVerify 跳过证书校验，自签名证书的环境用
	InsecureSkipVerify bool
	// MaxFrameSize 单帧大小上限，0 用默认值
	MaxFrameSize int

	Timeout time.Duration
}

// Client 一条到服务端的会话
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	maxSize uint32
	timeout time.Duration
}

// Dial 建立 TLS 连接
func Dial(config *Config) (*Client, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: config.Timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", config.Addr, &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	})
	if err != nil {
		return nil, err
	}
	return NewClient(conn, config), nil
}

// NewClient 包装一条已经建立的连接，测试可以塞管道进来
func NewClient(conn net.Conn, config *Config) *Client {
	maxSize := uint32(defaultMaxFrameSize)
	if config.MaxFrameSize > 0 {
		maxSize = uint32(config.MaxFrameSize)
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		maxSize: maxSize,
		timeout: timeout,
	}
}

// HashPassword 客户端侧的口令哈希：hex(sha256(salt || password))
func HashPassword(salt []byte, password string) string {
	buf := make([]byte, 0, len(salt)+len(password))
	buf = append(buf, salt...)
	buf = append(buf, []byte(password)...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// Send 发送一条协议消息
func (c *Client) Send(rec wire.Record) error {
	payload, err := wire.EncodeRecord(rec)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	return wire.WriteFrame(c.conn, payload)
}

// Next 阻塞读下一帧。deadline 为零值时不限时
func (c *Client) Next(deadline time.Time) (*wire.Frame, error) {
	c.conn.SetReadDeadline(deadline)
	payload, err := wire.ReadFrame(c.reader, c.maxSize)
	if err != nil {
		return nil, err
	}
	return wire.DecodePayload(payload)
}

// nextReply 读一条裸字符串应答，中途出现的其他帧是协议错误
func (c *Client) nextReply() (string, error) {
	frame, err := c.Next(time.Now().Add(c.timeout))
	if err != nil {
		return "", err
	}
	if !frame.IsString() {
		return "", fmt.Errorf("expected reply, got %v frame", frame.Record.Type())
	}
	return frame.Str, nil
}

// GetSalt 询问用户的盐。用户不存在时服务端也会回一个盐
func (c *Client) GetSalt(username string) ([]byte, error) {
	if err := c.Send(&wire.MsgGetSalt{Username: username}); err != nil {
		return nil, err
	}
	frame, err := c.Next(time.Now().Add(c.timeout))
	if err != nil {
		return nil, err
	}
	ret, ok := frame.Record.(*wire.MsgReturnSalt)
	if !ok {
		return nil, fmt.Errorf("expected return_salt, got %v", frame)
	}
	return ret.Salt, nil
}

// Register 注册新用户，盐在客户端生成后随注册请求上行
func (c *Client) Register(username, password string, salt []byte) error {
	err := c.Send(&wire.MsgRegister{
		Username:     username,
		PasswordHash: HashPassword(salt, password),
		Salt:         salt,
	})
	if err != nil {
		return err
	}
	reply, err := c.nextReply()
	if err != nil {
		return err
	}
	if reply != "success" {
		return fmt.Errorf("%w: %v", ErrAuthFailed, reply)
	}
	return nil
}

// Login 完整的 getsalt + login 握手。成功后连接进入聊天室，
// 紧接着到达的是历史回放和在线名单
func (c *Client) Login(username, password string) error {
	salt, err := c.GetSalt(username)
	if err != nil {
		return err
	}
	if err := c.Send(&wire.MsgLogin{Username: username, Password: HashPassword(salt, password)}); err != nil {
		return err
	}
	reply, err := c.nextReply()
	if err != nil {
		return err
	}
	if reply != "success" {
		return fmt.Errorf("%w: %v", ErrAuthFailed, reply)
	}
	return nil
}

// SendChat 向聊天室广播一条消息
func (c *Client) SendChat(content string) error {
	return c.Send(&wire.MsgChat{Content: content})
}

// SendPrivate 给指定用户发私信
func (c *Client) SendPrivate(to, content string) error {
	return c.Send(&wire.MsgPrivate{To: to, Content: content})
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.conn.Close()
}
