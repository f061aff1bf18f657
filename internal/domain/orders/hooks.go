package orders

import (
	"context"
	"fmt"

	"supplyhub/internal/core/apperror"
	"supplyhub/internal/domain"
	"supplyhub/internal/domain/inventory"
)

// RequireKnownSupplier rejects orders whose supplier is missing from the
// directory. Register it for BeforeCreate and BeforeUpdate.
func RequireKnownSupplier(suppliers inventory.SupplierDirectory) domain.Hook[*Order] {
	return func(ctx context.Context, o *Order) error {
		if _, err := suppliers.GetByID(ctx, o.SupplierID); err != nil {
			if apperror.IsNotFound(err) {
				return apperror.NewValidation("unknown supplier").
					WithDetail("field", "supplier_id").
					WithDetail("value", o.SupplierID)
			}
			return fmt.Errorf("lookup supplier: %w", err)
		}
		return nil
	}
}
