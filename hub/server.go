package hub

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io/ioutil"
	"log"
	"net"

	"golang.org/x/crypto/pkcs12"
)

// LoadTLSConfig 从 PKCS#12 密钥库加载服务端证书
func LoadTLSConfig(keystore, password string) (*tls.Config, error) {
	data, err := ioutil.ReadFile(keystore)
	if err != nil {
		return nil, fmt.Errorf("read keystore %v: %w", keystore, err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return nil, fmt.Errorf("decode keystore %v: %w", keystore, err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{
			Certificate: [][]byte{cert.Raw},
			PrivateKey:  priv,
			Leaf:        cert,
		}},
		MinVersion: tls.VersionTLS12,
	}, nil
}

// ListenAndServe 在配置的端口上开一个 TLS 监听并接收连接，
// 每条连接起一个会话。监听器被 Close 关掉时返回 nil
func (h *Hub) ListenAndServe() error {
	tlsConfig, err := LoadTLSConfig(h.config.Server.KeyStore, h.config.Server.KeyPassword)
	if err != nil {
		return err
	}
	listener, err := tls.Listen("tcp", fmt.Sprintf(":%d", h.config.Server.Port), tlsConfig)
	if err != nil {
		return err
	}
	log.Printf("chat server listening on :%d", h.config.Server.Port)
	return h.Serve(listener)
}

// Serve 在给定监听器上跑接收循环，TLS 和 websocket 共用
func (h *Hub) Serve(listener net.Listener) error {
	h.mu.Lock()
	h.listeners = append(h.listeners, listener)
	h.mu.Unlock()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Println("accept:", err)
			continue
		}
		newClientPeer(h, conn)
	}
}
