package hub

import (
	"crypto/hmac"
	"crypto/sha256"
	"log"
	"sync/atomic"
	"unicode/utf8"

	"github.com/tls-chat/database"
	"github.com/tls-chat/wire"
)

// 认证应答字符串，与既有客户端逐字节约定好的，不能改
const (
	replySuccess        = "success"
	replyDuplicateName  = "用户名已存在，请更换用户名后重试"
	replyInternalError  = "服务器内部错误"
	replyUserNotFound   = "用户不存在，请注册"
	replyBadCredentials = "用户名或密码错误"
	replyAlreadyOnline  = "用户名已存在"
)

const (
	maxUsernameRunes = 64
	// 盐固定 16 字节，注册时校验，合成盐也按这个长度截
	saltLen = 16
)

// handleGetSalt 返回用户的盐。用户不存在时返回一个由
// 用户名确定性派生的假盐，不然这一步就把注册表泄露了
func (p *ClientPeer) handleGetSalt(msg *wire.MsgGetSalt) {
	salt, err := p.hub.users.SaltFor(msg.Username)
	if err != nil {
		log.Println("getsalt:", err)
		salt = nil
	}
	if salt == nil {
		salt = syntheticSalt(p.hub.config.Server.Secret, msg.Username)
	}
	payload, err := wire.EncodeRecord(&wire.MsgReturnSalt{Salt: salt})
	if err != nil {
		return
	}
	p.PushMessage(payload, nil)
}

func (p *ClientPeer) handleRegister(msg *wire.MsgRegister) {
	if msg.Username == "" || utf8.RuneCountInString(msg.Username) > maxUsernameRunes ||
		len(msg.Salt) != saltLen {
		p.reply(replyInternalError)
		return
	}
	exists, err := p.hub.users.Exists(msg.Username)
	if err != nil {
		log.Println("register:", err)
		p.reply(replyInternalError)
		return
	}
	if exists {
		p.reply(replyDuplicateName)
		return
	}
	switch err := p.hub.users.Register(msg.Username, msg.PasswordHash, msg.Salt); err {
	case nil:
		p.reply(replySuccess)
	case database.ErrDuplicate:
		// 两个注册请求撞到一起，唯一索引兜底
		p.reply(replyDuplicateName)
	default:
		log.Println("register:", err)
		p.reply(replyInternalError)
	}
}

// handleLogin 校验凭证并转入聊天室。
// 登录路径上的存储故障一律按凭证不符处理，不给探测面
func (p *ClientPeer) handleLogin(msg *wire.MsgLogin) {
	exists, err := p.hub.users.Exists(msg.Username)
	if err != nil {
		log.Println("login:", err)
		p.reply(replyBadCredentials)
		return
	}
	if !exists {
		p.reply(replyUserNotFound)
		return
	}
	ok, err := p.hub.users.Verify(msg.Username, msg.Password)
	if err != nil {
		log.Println("login:", err)
		ok = false
	}
	if !ok {
		p.reply(replyBadCredentials)
		return
	}

	if err := p.hub.Join(p, msg.Username); err != nil {
		// 同名会话已在线，这条连接留在认证前阶段
		p.reply(replyAlreadyOnline)
		return
	}
	p.name = msg.Username
	atomic.StoreInt32(&p.phase, phaseJoined)
}

// syntheticSalt 为不存在的用户派生 16 字节假盐，
// 相同用户名每次问到的都一样
func syntheticSalt(secret, username string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(username))
	return mac.Sum(nil)[:saltLen]
}
