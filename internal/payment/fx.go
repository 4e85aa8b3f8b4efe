package payment

import (
	"go.uber.org/fx"

	"github.com/parishkeep/parishkeep/internal/config"
	"github.com/parishkeep/parishkeep/internal/payment/razorpay"
	subdomain "github.com/parishkeep/parishkeep/internal/subscription/domain"
)

func newClient(cfg *config.Config) *razorpay.Client {
	return razorpay.NewClient(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.WebhookSecret)
}

func asOrderCreator(c *razorpay.Client) subdomain.OrderCreator {
	return c
}

var Module = fx.Module("payment",
	fx.Provide(newClient),
	fx.Provide(asOrderCreator),
)
