package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// AuditHandler queries and exports the operation log.
type AuditHandler struct {
	audit *services.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(audit *services.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// HandleQuery returns operations matching filter, newest first.
func (h *AuditHandler) HandleQuery(ctx context.Context, filter entities.OperationFilter) ([]*entities.Operation, error) {
	return h.audit.Query(ctx, filter)
}

// HandleExport writes the matching operations to w in the given format and
// returns how many were written.
func (h *AuditHandler) HandleExport(ctx context.Context, w io.Writer, format string, filter entities.OperationFilter) (int, error) {
	switch format {
	case FormatJSON, "":
		return h.audit.ExportJSON(ctx, w, filter)
	case FormatCSV:
		return h.audit.ExportCSV(ctx, w, filter)
	default:
		return 0, fmt.Errorf("unsupported export format %q (use json or csv)", format)
	}
}
