package wire

import (
	"io"
)

// MsgGetSalt 登录前取盐
type MsgGetSalt struct {
	Username string
}

// Type 类型标签
func (m *MsgGetSalt) Type() string {
	return MsgTypeGetSalt
}

// Decode decode
func (m *MsgGetSalt) Decode(r io.Reader) error {
	var err error
	if m.Username, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgGetSalt) Encode(w io.Writer) error {
	return WriteString(w, m.Username)
}
