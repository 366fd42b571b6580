package ambassador

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"smallbiznis-referral/pkg/config"
	"smallbiznis-referral/pkg/mailer"
	"smallbiznis-referral/pkg/repository"
	"smallbiznis-referral/pkg/task"
	"smallbiznis-referral/services/attribution"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccessMailer emails self-service links. It runs off the request path,
// either in the worker or in a detached goroutine.
type AccessMailer struct {
	cfg         *config.Config
	codec       *attribution.Codec
	mailer      mailer.Mailer
	ambassadors repository.Repository[Ambassador]
}

type AccessMailerParams struct {
	fx.In

	Config *config.Config
	DB     *gorm.DB
	Codec  *attribution.Codec
	Mailer mailer.Mailer
}

func NewAccessMailer(p AccessMailerParams) *AccessMailer {
	return &AccessMailer{
		cfg:         p.Config,
		codec:       p.Codec,
		mailer:      p.Mailer,
		ambassadors: repository.ProvideStore[Ambassador](p.DB),
	}
}

// Send mails a fresh 15 minute link to the ambassador owning code. Unknown
// or unreachable ambassadors are not an error.
func (m *AccessMailer) Send(ctx context.Context, code string) error {
	a, err := m.ambassadors.FindOne(ctx, &Ambassador{ReferralCode: code})
	if err != nil {
		return fmt.Errorf("look up ambassador: %w", err)
	}
	if a == nil || a.Email == "" || a.Status != StatusActive {
		zap.L().Info("access link requested for unknown or unreachable ambassador", zap.String("code", code))
		return nil
	}

	token, err := m.codec.CreateAmbassadorToken(a.ReferralCode, attribution.DefaultTokenTTL)
	if err != nil {
		return fmt.Errorf("create ambassador token: %w", err)
	}

	link := fmt.Sprintf("%s/ambassador/%s?token=%s",
		strings.TrimRight(m.cfg.PublicURL, "/"), url.PathEscape(a.ReferralCode), url.QueryEscape(token))

	_, err = m.mailer.Send(ctx, mailer.Message{
		To:      a.Email,
		ToName:  a.Name,
		Subject: "Your referral dashboard link",
		Text: fmt.Sprintf("Hi %s,\n\nOpen your referral dashboard here (valid for 15 minutes):\n%s\n\nYour referral code is %s.",
			a.Name, link, a.ReferralCode),
	})
	if err != nil {
		return fmt.Errorf("send access email: %w", err)
	}
	return nil
}

type AccessLinkPayload struct {
	Code string `json:"code"`
}

func NewAccessLinkTask(code string) (*asynq.Task, error) {
	b, err := json.Marshal(AccessLinkPayload{Code: code})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(task.AmbassadorAccessLink, b, asynq.Queue("default"), asynq.MaxRetry(3)), nil
}

type AccessTaskHandler struct {
	mailer *AccessMailer
}

func NewAccessTaskHandler(m *AccessMailer) *AccessTaskHandler {
	return &AccessTaskHandler{mailer: m}
}

func (h *AccessTaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p AccessLinkPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || p.Code == "" {
		return fmt.Errorf("decode access link payload: %v: %w", err, asynq.SkipRetry)
	}
	return h.mailer.Send(ctx, p.Code)
}

func registerAccessTaskHandler(mux *asynq.ServeMux, h *AccessTaskHandler) {
	mux.Handle(task.AmbassadorAccessLink, h)
}
