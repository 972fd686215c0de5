package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type mapLookup map[string]interface{}

func (m mapLookup) Get(task TaskRef, skey, key string) (interface{}, bool) {
	v, ok := m[skey+"."+key]
	return v, ok
}

func TestEventsConfProbeOrder(t *testing.T) {
	global := &GlobalConfig{TaskEvents: map[string]interface{}{"mail events": "failed"}}
	l := &Lookup{Global: global}
	assert.Equal(t, "failed", l.GetEventsConf(TaskRef{Name: "foo"}, "mail events", nil))

	l.TaskConf = mapLookup{"events.mail events": "succeeded"}
	assert.Equal(t, "succeeded", l.GetEventsConf(TaskRef{Name: "foo"}, "mail events", nil),
		"task runtime config beats global")

	l.Broadcast = mapLookup{"events.mail events": "retry"}
	assert.Equal(t, "retry", l.GetEventsConf(TaskRef{Name: "foo"}, "mail events", nil),
		"broadcast beats everything")
}

func TestEventsConfFallsBackToDefault(t *testing.T) {
	l := &Lookup{}
	assert.Equal(t, "fallback", l.GetEventsConf(TaskRef{Name: "foo"}, "missing", "fallback"))
}

func TestHostConfGlobalTierMostSpecificWins(t *testing.T) {
	global := &GlobalConfig{
		Hosts: map[string]map[string]interface{}{
			"*":              {"retrieve job logs": false},
			"@myhost":        {"retrieve job logs": true},
			"alice@myhost":   {"retrieve job logs": false},
		},
	}
	l := &Lookup{Global: global}
	got := l.GetHostConf(TaskRef{Name: "foo", Host: "myhost"}, "retrieve job logs", nil, "remote")
	assert.Equal(t, true, got)
}

func TestHostConfDefaultsSkey(t *testing.T) {
	l := &Lookup{Broadcast: mapLookup{"remote.retrieve job logs": true}}
	got := l.GetHostConf(TaskRef{Name: "foo"}, "retrieve job logs", false, "")
	assert.Equal(t, true, got)
}
