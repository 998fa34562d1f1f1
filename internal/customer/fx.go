package customer

import (
	"github.com/harborline/freightway/internal/customer/repository"
	"github.com/harborline/freightway/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
