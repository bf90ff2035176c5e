package worker

import (
	"github.com/civicdesk/grievance-service/internal/service"
)

// StartIntegrationsWorker subscribes the outbound delivery handlers to the
// event stream.
func StartIntegrationsWorker(integrations *service.IntegrationsService) {
	if integrations == nil {
		return
	}
	integrations.RegisterHandlers()
}
