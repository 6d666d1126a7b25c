// Package notify 负责把通知送达成员：落库（站内信）、邮件、Redis 广播。
package notify

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bzwops/config"
	"bzwops/internal/model"
)

// ErrNoRecipient 收件人为空
var ErrNoRecipient = errors.New("通知收件人为空")

// ChannelPrefix Redis 广播频道前缀，完整频道为 notifications:{member_id}
const ChannelPrefix = "notifications:"

// Message 一条待发送的通知
type Message struct {
	Recipient   *model.Member
	Type        string
	Title       string
	Content     string
	URL         string
	URLTitle    string
	RelatedType *string
	RelatedID   *string
}

// Notifier 通知发送接口
type Notifier interface {
	// Notify 返回通知是否已送达（至少落库成功）
	Notify(ctx context.Context, msg Message) (bool, error)
}

// Store 通知持久化
type Store interface {
	Create(ctx context.Context, n *model.Notification) error
}

// Mailer 邮件发送
type Mailer interface {
	Send(to, subject, body string) error
}

// Publisher 实时广播
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Service Notifier 的默认实现
type Service struct {
	store   Store
	mailer  Mailer
	pub     Publisher
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewService 创建通知服务；mailer、pub 可为 nil
func NewService(store Store, mailer Mailer, pub Publisher, cfg *config.MailConfig, logger *zap.Logger) *Service {
	limit := rate.Inf
	if cfg != nil && cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &Service{
		store:   store,
		mailer:  mailer,
		pub:     pub,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Notify 落库后尽力发送邮件与广播；后两者失败只记录日志
func (s *Service) Notify(ctx context.Context, msg Message) (bool, error) {
	if msg.Recipient == nil || msg.Recipient.MemberID == "" {
		return false, ErrNoRecipient
	}

	n := &model.Notification{
		MemberID:    msg.Recipient.MemberID,
		Type:        msg.Type,
		Title:       msg.Title,
		Content:     msg.Content,
		URL:         msg.URL,
		URLTitle:    msg.URLTitle,
		RelatedType: msg.RelatedType,
		RelatedID:   msg.RelatedID,
	}
	if err := s.store.Create(ctx, n); err != nil {
		s.logger.Error("保存通知失败", zap.String("member_id", msg.Recipient.MemberID), zap.Error(err))
		return false, err
	}

	s.sendMail(ctx, msg)
	s.publish(ctx, n)

	return true, nil
}

func (s *Service) sendMail(ctx context.Context, msg Message) {
	if s.mailer == nil || msg.Recipient.Email == "" {
		return
	}
	if err := s.limiter.Wait(ctx); err != nil {
		s.logger.Warn("邮件限流等待被取消", zap.String("to", msg.Recipient.Email), zap.Error(err))
		return
	}

	body := msg.Content
	if msg.URL != "" {
		title := msg.URLTitle
		if title == "" {
			title = msg.URL
		}
		body += "\n\n" + title + ": " + msg.URL
	}
	if err := s.mailer.Send(msg.Recipient.Email, msg.Title, body); err != nil {
		s.logger.Warn("发送通知邮件失败", zap.String("to", msg.Recipient.Email), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, n *model.Notification) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		s.logger.Warn("序列化通知失败", zap.Error(err))
		return
	}
	if err := s.pub.Publish(ctx, ChannelPrefix+n.MemberID, payload); err != nil {
		s.logger.Warn("广播通知失败", zap.String("member_id", n.MemberID), zap.Error(err))
	}
}
