package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrobook/agrobook/models"
)

func TestObserver_DeliversPerTable(t *testing.T) {
	o := newObserver()

	partners, cancelPartners := o.Subscribe(models.TablePartners)
	defer cancelPartners()
	invoices, cancelInvoices := o.Subscribe(models.TableInvoices)
	defer cancelInvoices()

	ev := models.ChangeEvent{Table: models.TablePartners, LocalID: "p-1", Kind: models.ChangeSaved, At: time.Now()}
	o.publish(ev)

	select {
	case got := <-partners:
		assert.Equal(t, ev.LocalID, got.LocalID)
		assert.Equal(t, models.ChangeSaved, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("partner subscriber got no event")
	}

	select {
	case got := <-invoices:
		t.Fatalf("invoice subscriber got unrelated event: %+v", got)
	default:
	}
}

func TestObserver_CancelClosesChannel(t *testing.T) {
	o := newObserver()

	ch, cancel := o.Subscribe(models.TablePartners)
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Publishing after cancel must not panic or deliver.
	o.publish(models.ChangeEvent{Table: models.TablePartners, LocalID: "p-1"})
}

func TestObserver_FullSubscriberDropsEvents(t *testing.T) {
	o := newObserver()

	ch, cancel := o.Subscribe(models.TablePartners)
	defer cancel()

	for i := 0; i < subscriberBuffer+10; i++ {
		o.publish(models.ChangeEvent{Table: models.TablePartners, LocalID: "p-1", Kind: models.ChangeSaved})
	}

	// The slow consumer lost the overflow but the publisher never blocked.
	require.Len(t, ch, subscriberBuffer)
}
