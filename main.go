package main

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-xorm/xorm"

	"github.com/tls-chat/config"
	"github.com/tls-chat/database"
	"github.com/tls-chat/filelog"
	"github.com/tls-chat/hub"
)

func handleInterrupt(chatHub *hub.Hub, loginLog *filelog.FileLog, engine *xorm.Engine, sc chan os.Signal) {
	<-sc
	log.Println("shutting down")
	chatHub.Close()
	// 缓冲里的登录流水落库后再退
	loginLog.Close()
	engine.Close()
	os.Exit(0)
}

func main() {
	// read config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Panicln(err)
	}

	source := fmt.Sprintf("%v:%v@%v", cfg.DB.Username, cfg.DB.Password, cfg.DB.URL)
	engine, err := database.InitMysqlDb(source)
	if err != nil {
		log.Panicln(err)
	}

	userStore := database.NewDbUserStore(engine)
	messageStore := database.NewDbMessageStore(engine)
	auditStore := database.NewDbAuditStore(engine)

	// 配了 redis 就把在线名单镜像出去，别的服务能直接读
	var presence database.PresenceCache = database.NewMemPresenceCache()
	if cfg.Redis.Addr != "" {
		redisClient := database.InitRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Db)
		if _, err := redisClient.Ping().Result(); err != nil {
			log.Panicln(err)
		}
		presence = database.NewRedisPresenceCache(redisClient)
	}

	// 登录流水先进本地缓冲，后台批量落库
	loginLog, err := filelog.NewFileLog(&filelog.Config{
		File: cfg.AuditFile,
		SubFunc: func(logs []*bytes.Buffer) error {
			events := make([]*database.LoginLog, 0, len(logs))
			for _, buf := range logs {
				event, err := hub.DecodeLoginEvent(buf)
				if err != nil {
					log.Println("audit decode:", err)
					continue
				}
				events = append(events, event)
			}
			return auditStore.SaveLoginEvents(events)
		},
	})
	if err != nil {
		log.Panicln(err)
	}

	chatHub := hub.NewHub(cfg, userStore, messageStore, presence, loginLog)

	if cfg.Metrics.Listen != "" {
		go hub.ServeMetrics(cfg.Metrics.Listen)
	}
	if cfg.Server.WsListen != "" {
		go func() {
			if err := chatHub.ServeWs(cfg.Server.WsListen); err != nil {
				log.Println("websocket:", err)
			}
		}()
	}

	// listen sys.exit
	sc := make(chan os.Signal, 1)
	signal.Notify(sc, os.Interrupt, syscall.SIGTERM)
	go handleInterrupt(chatHub, loginLog, engine, sc)

	if err := chatHub.ListenAndServe(); err != nil {
		log.Panicln(err)
	}
}
