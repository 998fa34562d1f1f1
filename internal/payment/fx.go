package payment

import (
	"github.com/harborline/freightway/internal/payment/repository"
	"github.com/harborline/freightway/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
