package database

import (
	"fmt"
	"log"
	"strings"
	"time"

	// just init
	_ "github.com/go-sql-driver/mysql"
	"github.com/go-xorm/xorm"
	"xorm.io/core"
)

const sendTimeLayout = "2006-01-02 15:04:05"

// DbUserStore xorm user store
type DbUserStore struct {
	engine *xorm.Engine
}

// NewDbUserStore new a DbUserStore
func NewDbUserStore(engine *xorm.Engine) *DbUserStore {
	err := engine.Sync2(new(User))
	if err != nil {
		log.Println(err)
	}
	return &DbUserStore{engine: engine}
}

// Exists Exists
func (s *DbUserStore) Exists(username string) (bool, error) {
	return s.engine.Exist(&User{Username: username})
}

// SaltFor SaltFor
func (s *DbUserStore) SaltFor(username string) ([]byte, error) {
	user := &User{}
	has, err := s.engine.Where("username = ? AND is_active = ?", username, true).Get(user)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}
	return user.Salt, nil
}

// Register Register
func (s *DbUserStore) Register(username, passwordHash string, salt []byte) error {
	user := &User{
		Username:     username,
		PasswordHash: passwordHash,
		Salt:         salt,
		IsActive:     true,
	}
	_, err := s.engine.Insert(user)
	if err != nil {
		if isDuplicateErr(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// Verify Verify
func (s *DbUserStore) Verify(username, passwordHash string) (bool, error) {
	user := &User{}
	has, err := s.engine.Where("username = ? AND is_active = ?", username, true).Get(user)
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}
	// 哈希按大小写敏感的字符串比较
	return user.PasswordHash == passwordHash, nil
}

// 唯一索引冲突的报错文本，mysql 和 sqlite 各有说法
func isDuplicateErr(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// DbMessageStore xorm message store
type DbMessageStore struct {
	engine *xorm.Engine
}

// NewDbMessageStore new a DbMessageStore
func NewDbMessageStore(engine *xorm.Engine) *DbMessageStore {
	err := engine.Sync2(new(ChatLog))
	if err != nil {
		log.Println(err)
	}
	return &DbMessageStore{engine: engine}
}

// Append Append
func (s *DbMessageStore) Append(sender, receiver, body, level string) error {
	row := &ChatLog{
		SendTime: time.Now().Format(sendTimeLayout),
		Sender:   sender,
		Receiver: receiver,
		Message:  body,
		LogLevel: level,
	}
	_, err := s.engine.Insert(row)
	return err
}

// Recent 按 id 倒序取 limit 行再反转，最旧的排在最前
func (s *DbMessageStore) Recent(limit int, viewer string) ([]string, error) {
	var rows []ChatLog
	err := s.engine.
		Where("(receiver = '' OR sender = ? OR receiver = ?) AND log_level <> ?",
			viewer, viewer, LevelSystem).
		Desc("id").Limit(limit).Find(&rows)
	if err != nil {
		return nil, err
	}

	history := make([]string, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		history = append(history, renderLine(&rows[i]))
	}
	return history, nil
}

// renderLine 回放行的渲染格式，客户端原样展示
func renderLine(row *ChatLog) string {
	message := row.Message
	if row.Receiver != "" {
		message = "[私信] " + message
	}
	return "[" + row.Sender + "] [" + row.SendTime + "]：" + message
}

// DbAuditStore xorm audit store
type DbAuditStore struct {
	engine *xorm.Engine
}

// NewDbAuditStore new a DbAuditStore
func NewDbAuditStore(engine *xorm.Engine) *DbAuditStore {
	err := engine.Sync2(new(LoginLog))
	if err != nil {
		log.Println(err)
	}
	return &DbAuditStore{engine: engine}
}

// SaveLoginEvents SaveLoginEvents
func (s *DbAuditStore) SaveLoginEvents(events []*LoginLog) error {
	if len(events) == 0 {
		return nil
	}
	_, err := s.engine.Insert(&events)
	return err
}

// InitMysqlDb init mysql database
func InitMysqlDb(source string) (*xorm.Engine, error) {
	url := fmt.Sprintf("%s?charset=utf8mb4&parseTime=True&loc=Local", source)
	engine, err := xorm.NewEngine("mysql", url)
	if err != nil {
		return nil, err
	}

	engine.SetColumnMapper(core.SnakeMapper{})
	return engine, nil
}
