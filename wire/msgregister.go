package wire

import (
	"io"
)

// MsgRegister 注册请求。盐由客户端生成，随哈希一起上行
type MsgRegister struct {
	Username     string
	PasswordHash string
	Salt         []byte
}

// Type 类型标签
func (m *MsgRegister) Type() string {
	return MsgTypeRegister
}

// Decode decode
func (m *MsgRegister) Decode(r io.Reader) error {
	var err error
	if m.Username, err = ReadString(r); err != nil {
		return err
	}
	if m.PasswordHash, err = ReadString(r); err != nil {
		return err
	}
	if m.Salt, err = ReadBytes(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgRegister) Encode(w io.Writer) error {
	var err error
	if err = WriteString(w, m.Username); err != nil {
		return err
	}
	if err = WriteString(w, m.PasswordHash); err != nil {
		return err
	}
	if err = WriteBytes(w, m.Salt); err != nil {
		return err
	}
	return nil
}
