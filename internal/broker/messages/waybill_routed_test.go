package messages

import (
	"testing"
	"time"

	"github.com/BearBump/FreightBox/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestNewWaybillRouted(t *testing.T) {
	toID := uint64(9)
	now := time.Now().UTC()
	m := NewWaybillRouted(&models.WaybillRouting{
		WaybillID:     12,
		Time:          now,
		OperationType: models.WaybillStatusDeparted,
		DepartmentID:  3,
		UserID:        4,
		Info:          models.RoutingInfo{TransportOutID: &toID},
	})

	_, err := uuid.Parse(m.EventID)
	require.NoError(t, err)
	require.Equal(t, uint64(12), m.WaybillID)
	require.Equal(t, int16(models.WaybillStatusDeparted), m.Status)
	require.Equal(t, "Departed", m.StatusName)
	require.Equal(t, &toID, m.TransportOutID)
	require.Nil(t, m.ReturnWaybillID)
	require.Equal(t, []byte("12"), m.Key())

	other := NewWaybillRouted(&models.WaybillRouting{WaybillID: 12})
	require.NotEqual(t, m.EventID, other.EventID)
}
