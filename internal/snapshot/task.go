package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/pricing"
)

// TypeArchive is the asynq task type carrying a cart snapshot.
const TypeArchive = "cart:snapshot"

// Record is one archived cart state with its totals at archive time.
type Record struct {
	SessionID       string        `json:"sessionId"`
	Snapshot        cart.Snapshot `json:"snapshot"`
	TotalItems      int           `json:"totalItems"`
	DealSubtotal    string        `json:"dealSubtotal"`
	NonDealSubtotal string        `json:"nonDealSubtotal"`
	VoucherDiscount string        `json:"voucherDiscount"`
	Total           string        `json:"total"`
	ArchivedAt      time.Time     `json:"archivedAt"`
}

// NewRecord captures snap and its summary at the given time.
func NewRecord(sessionID string, snap cart.Snapshot, summary pricing.Summary, at time.Time) Record {
	total := 0
	for _, item := range snap.Items {
		total += item.Quantity
	}
	return Record{
		SessionID:       sessionID,
		Snapshot:        snap,
		TotalItems:      total,
		DealSubtotal:    summary.DealSubtotal.StringFixed(2),
		NonDealSubtotal: summary.NonDealSubtotal.StringFixed(2),
		VoucherDiscount: summary.VoucherDiscount.StringFixed(2),
		Total:           summary.Total.StringFixed(2),
		ArchivedAt:      at.UTC(),
	}
}

// NewTask encodes rec as an archive task.
func NewTask(rec Record, opts ...asynq.Option) (*asynq.Task, error) {
	if strings.TrimSpace(rec.SessionID) == "" {
		return nil, errors.New("snapshot: session id required")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot task: %w", err)
	}
	return asynq.NewTask(TypeArchive, payload, opts...), nil
}

// DecodeTask extracts the record carried by t.
func DecodeTask(t *asynq.Task) (Record, error) {
	if t == nil || t.Type() != TypeArchive {
		return Record{}, errors.New("snapshot: unexpected task type")
	}
	var rec Record
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		return Record{}, fmt.Errorf("decode snapshot task: %w", err)
	}
	if strings.TrimSpace(rec.SessionID) == "" {
		return Record{}, errors.New("snapshot: task missing session id")
	}
	return rec, nil
}
