package obs_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/obs"
)

func TestDomainMetricsRecord(t *testing.T) {
	obs.MustRegisterDomainMetrics("toko_test", prometheus.NewRegistry())

	before := testutil.ToFloat64(obs.CartPromotionTotal.WithLabelValues("voucher", "rejected"))
	obs.RecordPromotion("voucher", false)
	require.Equal(t, before+1, testutil.ToFloat64(obs.CartPromotionTotal.WithLabelValues("voucher", "rejected")))

	before = testutil.ToFloat64(obs.CartMutationsTotal.WithLabelValues("add_item", "ok"))
	obs.RecordCartMutation("add_item", "ok", 20*time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(obs.CartMutationsTotal.WithLabelValues("add_item", "ok")))
	require.Equal(t, 1, testutil.CollectAndCount(obs.CartMutationDuration))

	before = testutil.ToFloat64(obs.CartPersistFailuresTotal.WithLabelValues("slot"))
	obs.RecordPersistFailure("slot")
	require.Equal(t, before+1, testutil.ToFloat64(obs.CartPersistFailuresTotal.WithLabelValues("slot")))
}
