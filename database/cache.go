package database

// PresenceCache 定义了在线名单镜像的操作接口。
// 镜像只为观测用，权威名单在 hub 的注册表里
type PresenceCache interface {
	AddOnline(username string) error
	DelOnline(username string) error
	Online() ([]string, error)
}
