// Package backend defines the read-only boundary to the business
// system that owns durable customer records. The session store only
// mirrors these records into its client cache and never writes back.
package backend

import (
	"context"

	"github.com/salonflow/salonflow-sessions/internal/model"
)

// BusinessBackend supplies the source-of-truth client record for an
// identity. Implementations live under internal/backend/<driver>/.
// Unknown clients surface as model.ErrNotFound.
type BusinessBackend interface {
	FetchClient(ctx context.Context, tenantID int64, phone string) (*model.ClientRecord, error)
}
