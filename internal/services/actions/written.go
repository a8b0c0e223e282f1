package actions

import (
	"context"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/samber/lo"
)

// writeTracker remembers every waybill the transaction wrote, so their
// cached snapshots can be dropped once it commits.
type writeTracker struct {
	storage.Tx
	ids []uint64
}

func (t *writeTracker) InsertWaybill(ctx context.Context, w *models.Waybill) error {
	if err := t.Tx.InsertWaybill(ctx, w); err != nil {
		return err
	}
	t.ids = append(t.ids, w.ID)
	return nil
}

func (t *writeTracker) UpdateWaybill(ctx context.Context, w *models.Waybill) error {
	if err := t.Tx.UpdateWaybill(ctx, w); err != nil {
		return err
	}
	t.ids = append(t.ids, w.ID)
	return nil
}

// DeleteCargoPricePayment detaches the members inside the store.
func (t *writeTracker) DeleteCargoPricePayment(ctx context.Context, id uint64) error {
	members, err := t.Tx.ListCargoPricePaymentWaybills(ctx, id)
	if err != nil {
		return err
	}
	if err := t.Tx.DeleteCargoPricePayment(ctx, id); err != nil {
		return err
	}
	t.ids = append(t.ids, lo.Map(members, func(w *models.Waybill, _ int) uint64 { return w.ID })...)
	return nil
}

func (t *writeTracker) written() []uint64 {
	return lo.Uniq(t.ids)
}
