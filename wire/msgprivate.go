package wire

import (
	"io"
)

// MsgPrivate 私信。客户端上行时 Sender 为空，由服务端补齐后转发
type MsgPrivate struct {
	Sender  string
	To      string
	Content string
}

// Type 类型标签
func (m *MsgPrivate) Type() string {
	return MsgTypePrivate
}

// Decode decode
func (m *MsgPrivate) Decode(r io.Reader) error {
	var err error
	if m.Sender, err = ReadString(r); err != nil {
		return err
	}
	if m.To, err = ReadString(r); err != nil {
		return err
	}
	if m.Content, err = ReadString(r); err != nil {
		return err
	}
	return nil
}

// Encode encode
func (m *MsgPrivate) Encode(w io.Writer) error {
	var err error
	if err = WriteString(w, m.Sender); err != nil {
		return err
	}
	if err = WriteString(w, m.To); err != nil {
		return err
	}
	if err = WriteString(w, m.Content); err != nil {
		return err
	}
	return nil
}
