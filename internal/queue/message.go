package queue

import "fmt"

// NotificationMessage 是写入 Stream / Kafka 的邮件通知事件。
type NotificationMessage struct {
	EventID string `json:"event_id"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Validate 做最小字段校验，防止消费者处理脏消息。
func (m NotificationMessage) Validate() error {
	if m.EventID == "" {
		return fmt.Errorf("event_id is required")
	}
	if m.To == "" {
		return fmt.Errorf("to is required")
	}
	if m.Subject == "" {
		return fmt.Errorf("subject is required")
	}
	return nil
}

// values 转为 XADD 的字段表。
func (m NotificationMessage) values() map[string]any {
	return map[string]any{
		"event_id": m.EventID,
		"to":       m.To,
		"subject":  m.Subject,
		"html":     m.HTML,
	}
}
