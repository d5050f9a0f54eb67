package wire

import (
	"io"
)

// MsgSystem 服务端下发的系统提示，比如私信对象不在线
type MsgSystem struct {
	Content string
}

// Type 类型标签
func (m *MsgSystem) Type() string {
	return MsgTypeSystem
}

// Decode decode
func (m *MsgSystem) Decode(r io.Reader) error {
	var err error
	if m.Content, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgSystem) Encode(w io.Writer) error {
	return WriteString(w, m.Content)
}
