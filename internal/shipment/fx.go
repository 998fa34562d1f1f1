package shipment

import (
	"github.com/harborline/freightway/internal/shipment/repository"
	"github.com/harborline/freightway/internal/shipment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("shipment.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
