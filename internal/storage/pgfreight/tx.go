package pgfreight

import (
	"github.com/BearBump/FreightBox/internal/storage"
	"github.com/jackc/pgx/v5"
)

// pgTx implements storage.Tx. Every read that feeds a decision takes row
// locks, so two requests racing on one entity serialise.
type pgTx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*pgTx)(nil)
