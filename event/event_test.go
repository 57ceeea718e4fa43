// Copyright 2025 OpenPad Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/openpad-io/openpad/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const testEvtType event.EventType = "test.event"

func TestEventBusSingleSubscriber(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, subCh := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	select {
	case evt, ok := <-subCh:
		require.True(t, ok, "event channel closed unexpectedly")
		require.Equal(t, 999, evt.Data)
		require.Equal(t, testEvtType, evt.Type)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
}

func TestEventBusMultipleSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	_, sub1Ch := eb.Subscribe(testEvtType)
	_, sub2Ch := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 999))
	for _, subCh := range []<-chan event.Event{sub1Ch, sub2Ch} {
		select {
		case evt, ok := <-subCh:
			require.True(t, ok, "event channel closed unexpectedly")
			require.Equal(t, 999, evt.Data)
		case <-time.After(1 * time.Second):
			t.Fatalf("timeout waiting for event")
		}
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	defer eb.Stop()
	subId, subCh := eb.Subscribe(testEvtType)
	eb.Unsubscribe(testEvtType, subId)
	// Channel is closed on unsubscribe
	select {
	case _, ok := <-subCh:
		require.False(t, ok, "expected closed channel after unsubscribe")
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for channel close")
	}
	// Publishing to a type with no subscribers must not block
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
}

func TestEventBusSubscribeFunc(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	var counter atomic.Int64
	eb.SubscribeFunc(testEvtType, func(evt event.Event) {
		counter.Add(1)
	})
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 2))
	require.Eventually(
		t,
		func() bool { return counter.Load() == 2 },
		time.Second,
		10*time.Millisecond,
	)
	// Stop closes subscriber channels so the handler goroutine exits
	eb.Stop()
}

func TestEventBusStopAllowsReuse(t *testing.T) {
	defer goleak.VerifyNone(t)
	eb := event.NewEventBus(nil, nil)
	_, subCh := eb.Subscribe(testEvtType)
	eb.Stop()
	select {
	case _, ok := <-subCh:
		require.False(t, ok)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for channel close")
	}
	// A stopped bus accepts new subscriptions
	_, subCh2 := eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 7))
	select {
	case evt := <-subCh2:
		assert.Equal(t, 7, evt.Data)
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for event")
	}
	eb.Stop()
}

func TestEventBusMetrics(t *testing.T) {
	defer goleak.VerifyNone(t)
	registry := prometheus.NewRegistry()
	eb := event.NewEventBus(registry, nil)
	defer eb.Stop()
	_, _ = eb.Subscribe(testEvtType)
	eb.Publish(testEvtType, event.NewEvent(testEvtType, 1))
	metricFamilies, err := registry.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(metricFamilies))
	for _, mf := range metricFamilies {
		names = append(names, mf.GetName())
	}
	assert.Contains(t, names, "openpad_events_total")
	assert.Contains(t, names, "openpad_event_subscribers")
}
