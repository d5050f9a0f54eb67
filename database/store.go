package database

import "errors"

var (
	// ErrDuplicate 用户名已被占用，无论 is_active 与否
	ErrDuplicate = errors.New("duplicate username")
)

// UserStore 定义了用户表的操作接口
type UserStore interface {
	// Exists 用户名是否存在，不区分 is_active
	Exists(username string) (bool, error)
	// SaltFor 返回在用账号的盐，没有返回 nil
	SaltFor(username string) ([]byte, error)
	// Register 原子插入，用户名重复返回 ErrDuplicate
	Register(username, passwordHash string, salt []byte) error
	// Verify 在用账号存在且存储哈希与入参逐字符相等才为真
	Verify(username, passwordHash string) (bool, error)
}

// MessageStore 定义了聊天记录的操作接口
type MessageStore interface {
	// Append 追加一行。receiver 空串表示广播
	Append(sender, receiver, body, level string) error
	// Recent 返回 viewer 可见的最近 limit 行，最旧的在前，
	// 每行已按回放格式渲染好
	Recent(limit int, viewer string) ([]string, error)
}

// AuditStore 定义了登录流水的批量写入接口
type AuditStore interface {
	SaveLoginEvents(events []*LoginLog) error
}
