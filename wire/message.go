package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrUnknownType 类型标签不认识。协议演进时旧端点靠它区分
// “没见过的消息”和“坏掉的帧”
var ErrUnknownType = errors.New("unknown message type")

// 消息类型标签，客户端与服务端共享
const (
	MsgTypeChat       = "chat"
	MsgTypePrivate    = "private"
	MsgTypeUserList   = "user_list"
	MsgTypeHistory    = "history"
	MsgTypeSystem     = "system"
	MsgTypeLogin      = "login"
	MsgTypeRegister   = "register"
	MsgTypeGetSalt    = "getsalt"
	MsgTypeReturnSalt = "returnsalt"
)

// payload 的第一个字节区分裸字符串和带类型标签的记录。
// register/login 的应答是一个裸字符串，这个不对称是协议继承下来的
const (
	kindString = uint8(0)
	kindRecord = uint8(1)
)

// Record 定义了一条带类型标签的消息记录的编解码
type Record interface {
	Type() string
	Decode(io.Reader) error
	Encode(io.Writer) error
}

// Frame 是从流中读出的一个完整单元：裸字符串或者一条记录
type Frame struct {
	Kind   uint8
	Str    string
	Record Record
}

// IsString Frame 是否裸字符串应答
func (f *Frame) IsString() bool {
	return f.Kind == kindString
}

// MakeEmptyRecord 根据类型标签创建一个空的消息记录
func MakeEmptyRecord(typ string) (Record, error) {
	var rec Record
	switch typ {
	case MsgTypeChat:
		rec = &MsgChat{}
	case MsgTypePrivate:
		rec = &MsgPrivate{}
	case MsgTypeUserList:
		rec = &MsgUserList{}
	case MsgTypeHistory:
		rec = &MsgHistory{}
	case MsgTypeSystem:
		rec = &MsgSystem{}
	case MsgTypeLogin:
		rec = &MsgLogin{}
	case MsgTypeRegister:
		rec = &MsgRegister{}
	case MsgTypeGetSalt:
		rec = &MsgGetSalt{}
	case MsgTypeReturnSalt:
		rec = &MsgReturnSalt{}
	default:
		return nil, fmt.Errorf("%w [%s]", ErrUnknownType, typ)
	}
	return rec, nil
}

// EncodeRecord 编码一条记录为 payload，调用方负责外层的长度前缀
func EncodeRecord(rec Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := WriteUint8(buf, kindRecord); err != nil {
		return nil, err
	}
	if err := WriteString(buf, rec.Type()); err != nil {
		return nil, err
	}
	if err := rec.Encode(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeString 编码一个裸字符串应答为 payload
func EncodeString(str string) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := WriteUint8(buf, kindString); err != nil {
		return nil, err
	}
	if err := WriteString(buf, str); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodePayload 解码一个 payload
func DecodePayload(payload []byte) (*Frame, error) {
	r := bytes.NewReader(payload)
	kind, err := ReadUint8(r)
	if err != nil {
		return nil, err
	}
	frame := &Frame{Kind: kind}
	switch kind {
	case kindString:
		if frame.Str, err = ReadString(r); err != nil {
			return nil, err
		}
	case kindRecord:
		typ, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		rec, err := MakeEmptyRecord(typ)
		if err != nil {
			return nil, err
		}
		if err = rec.Decode(r); err != nil {
			return nil, err
		}
		frame.Record = rec
	default:
		return nil, fmt.Errorf("unhandled frame kind[%d]", kind)
	}
	return frame, nil
}

// WriteFrame 把一个 payload 连同长度前缀写到流中
func WriteFrame(w io.Writer, payload []byte) error {
	return WriteBytes(w, payload)
}

// ReadFrame 从流中读出一个完整的 payload，limit 为 0 表示不限制
func ReadFrame(r io.Reader, limit uint32) ([]byte, error) {
	return ReadBytesLimit(r, limit)
}
