package wire

import (
	"io"
)

// MsgChat 聊天室广播消息。系统进出通知也走这个信封，
// 区别只在落库时的 level
type MsgChat struct {
	Sender  string
	Content string
}

// Type 类型标签
func (m *MsgChat) Type() string {
	return MsgTypeChat
}

// Decode decode
func (m *MsgChat) Decode(r io.Reader) error {
	var err error
	if m.Sender, err = ReadString(r); err != nil {
		return err
	}
	if m.Content, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgChat) Encode(w io.Writer) error {
	var err error
	if err = WriteString(w, m.Sender); err != nil {
		return err
	}
	if err = WriteString(w, m.Content); err != nil {
		return err
	}
	return nil
}
