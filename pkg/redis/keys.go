package redis

import "fmt"

// 统一约定 Redis 键名前缀。
const prefix = "storefront"

// RateLimitKey 限流键：scope 为接口名，subject 为会话 ID 或客户端 IP。
func RateLimitKey(scope, subject string) string {
	return fmt.Sprintf("%s:rate_limit:%s:%s", prefix, scope, subject)
}

// SweepLockKey 过期订单清理任务的全局互斥锁，多实例部署时只有一个实例执行。
func SweepLockKey() string {
	return prefix + ":lock:order_sweep"
}

// ShiprocketTokenKey 缓存物流平台的访问令牌。
func ShiprocketTokenKey() string {
	return prefix + ":shiprocket:token"
}

// NotificationSentKey 标记某条通知事件是否已投递，用于消费端去重。
func NotificationSentKey(eventID string) string {
	return fmt.Sprintf("%s:notify:sent:%s", prefix, eventID)
}
