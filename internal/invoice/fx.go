package invoice

import (
	"github.com/harborline/freightway/internal/invoice/repository"
	"github.com/harborline/freightway/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
