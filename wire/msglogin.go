package wire

import (
	"io"
)

// MsgLogin 登录请求。Password 是客户端用盐算好的十六进制哈希，
// 明文口令不上行
type MsgLogin struct {
	Username string
	Password string
}

// Type 类型标签
func (m *MsgLogin) Type() string {
	return MsgTypeLogin
}

// Decode decode
func (m *MsgLogin) Decode(r io.Reader) error {
	var err error
	if m.Username, err = ReadString(r); err != nil {
		return err
	}
	if m.Password, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgLogin) Encode(w io.Writer) error {
	var err error
	if err = WriteString(w, m.Username); err != nil {
		return err
	}
	if err = WriteString(w, m.Password); err != nil {
		return err
	}
	return nil
}
