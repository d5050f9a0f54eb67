package wire

import (
	"io"
	"sort"
)

// MsgUserList 在线名单。key 是用户名，value 是占位符
type MsgUserList struct {
	Users map[string]bool
}

// Type 类型标签
func (m *MsgUserList) Type() string {
	return MsgTypeUserList
}

// Decode decode
func (m *MsgUserList) Decode(r io.Reader) error {
	count, err := ReadUint32(r)
	if err != nil {
		return err
	}
	m.Users = make(map[string]bool, count)
	for i := uint32(0); i < count; i++ {
		name, err := ReadString(r)
		if err != nil {
			return err
		}
		val, err := ReadBool(r)
		if err != nil {
			return err
		}
		m.Users[name] = val
	}
	return nil
}

// Encode encode。key 排序后写出，保证编码结果确定
func (m *MsgUserList) Encode(w io.Writer) error {
	if err := WriteUint32(w, uint32(len(m.Users))); err != nil {
		return err
	}
	names := make([]string, 0, len(m.Users))
	for name := range m.Users {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := WriteString(w, name); err != nil {
			return err
		}
		if err := WriteBool(w, m.Users[name]); err != nil {
			return err
		}
	}
	return nil
}
