package database

import (
	"time"
)

// 聊天记录级别。system 级别的行不进入历史回放
const (
	LevelUser   = "user"
	LevelSystem = "system"
)

// User 用户账号。注销只是清掉 is_active，行不删除，
// 用户名的唯一性覆盖所有行
type User struct {
	ID           int64  `xorm:"pk autoincr 'id'"`
	Username     string `xorm:"varchar(64) unique 'username'"`
	PasswordHash string `xorm:"varchar(64) 'password_hash'"`
	Salt         []byte `xorm:"blob 'salt'"`
	IsActive     bool   `xorm:"default true 'is_active'"`
}

// TableName 表名
func (u *User) TableName() string {
	return "users"
}

// ChatLog 聊天记录。receiver 为空串表示广播
type ChatLog struct {
	ID       int64  `xorm:"pk autoincr 'id'"`
	SendTime string `xorm:"varchar(32) 'send_time'"`
	Sender   string `xorm:"varchar(64) 'sender'"`
	Receiver string `xorm:"varchar(64) 'receiver'"`
	Message  string `xorm:"varchar(1024) 'message'"`
	LogLevel string `xorm:"varchar(16) 'log_level'"`
}

// TableName 表名
func (c *ChatLog) TableName() string {
	return "chat_log"
}

// LoginLog 登录流水，经 filelog 批量落库
type LoginLog struct {
	ID       int64     `xorm:"pk autoincr 'id'"`
	Username string    `xorm:"varchar(64) 'username'"`
	Event    string    `xorm:"varchar(16) 'event'"`
	At       time.Time `xorm:"'at'"`
}

// TableName 表名
func (l *LoginLog) TableName() string {
	return "login_log"
}
