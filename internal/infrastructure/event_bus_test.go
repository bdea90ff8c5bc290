package infrastructure

import (
	"sync"
	"testing"
)

func TestBusDeliversToAllListeners(t *testing.T) {
	bus := NewBus()

	var got []string
	bus.Subscribe("intake:created", func(payload map[string]interface{}) {
		got = append(got, "first:"+payload["task_id"].(string))
	})
	bus.Subscribe("intake:created", func(payload map[string]interface{}) {
		got = append(got, "second:"+payload["task_id"].(string))
	})
	bus.Subscribe("automation:failed", func(payload map[string]interface{}) {
		got = append(got, "wrong event")
	})

	bus.Publish("intake:created", map[string]interface{}{"task_id": "t1"})

	if len(got) != 2 || got[0] != "first:t1" || got[1] != "second:t1" {
		t.Errorf("deliveries = %v", got)
	}
}

func TestBusIsolatesPanickingListener(t *testing.T) {
	bus := NewBus()

	delivered := false
	bus.Subscribe("intake:created", func(payload map[string]interface{}) {
		panic("listener bug")
	})
	bus.Subscribe("intake:created", func(payload map[string]interface{}) {
		delivered = true
	})

	bus.Publish("intake:created", map[string]interface{}{})

	if !delivered {
		t.Error("panicking listener blocked the rest")
	}
}

func TestBusPublishWithoutListeners(t *testing.T) {
	bus := NewBus()
	bus.Publish("calendar:event_created", map[string]interface{}{"k": "v"})
}

func TestBusPublishAsync(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	wg.Add(1)
	bus.Subscribe("intake:created", func(payload map[string]interface{}) {
		wg.Done()
	})

	bus.PublishAsync("intake:created", map[string]interface{}{})
	wg.Wait()
}
