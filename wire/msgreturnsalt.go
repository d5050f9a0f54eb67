package wire

import (
	"io"
)

// MsgReturnSalt getsalt 的应答。用户不存在时返回的是合成盐，
// 客户端无法区分，避免探测账号
type MsgReturnSalt struct {
	Salt []byte
}

// Type 类型标签
func (m *MsgReturnSalt) Type() string {
	return MsgTypeReturnSalt
}

// Decode decode
func (m *MsgReturnSalt) Decode(r io.Reader) error {
	var err error
	if m.Salt, err = ReadBytes(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgReturnSalt) Encode(w io.Writer) error {
	return WriteBytes(w, m.Salt)
}
