package wire

import (
	"io"
)

// MsgHistory 历史回放，一行一条，Log 是渲染好的文本
type MsgHistory struct {
	Log string
}

// Type 类型标签
func (m *MsgHistory) Type() string {
	return MsgTypeHistory
}

// Decode decode
func (m *MsgHistory) Decode(r io.Reader) error {
	var err error
	if m.Log, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgHistory) Encode(w io.Writer) error {
	return WriteString(w, m.Log)
}
